// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ourican/rma-service/app/dto"
	"github.com/ourican/rma-service/app/services"
	businessflow "github.com/ourican/rma-service/business_flow"
	"github.com/ourican/rma-service/repository"
	testingutil "github.com/ourican/rma-service/testing"
	"github.com/ourican/rma-service/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier captures notifications instead of sending them
type recordingNotifier struct {
	mu   sync.Mutex
	sent []services.RMANotification
}

func (r *recordingNotifier) SendRMAEmail(n services.RMANotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recordingNotifier) last() services.RMANotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

func newTestRMAFlow(testDB *testingutil.TestDB, notifier services.NotificationService, seed int64) businessflow.RMAFlow {
	rmaRepo := repository.NewRMARequestRepository(testDB.DB)
	sequenceRepo := repository.NewSequenceRepository(testDB.DB)
	return businessflow.NewRMAFlow(rmaRepo, sequenceRepo, notifier, nil, nil, utils.DefaultTokenPrefix, seed, testDB.DB)
}

func TestRMAFlowLifecycle(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		notifier := &recordingNotifier{}
		flow := newTestRMAFlow(testDB, notifier, 489)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		// Submit mints the next token after the seeded baseline
		submitResp, err := flow.Submit(ctx, &dto.SubmitRMARequest{
			RMAFieldSet: dto.RMAFieldSet{
				Client:             "Acme Controls",
				DeviceSerialNumber: "SN-1",
				IssuesObserved:     "No display output",
				CustomerEmail:      "customer@example.com",
			},
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, "MES-RMA-490", submitResp.Token)
		assert.True(t, submitResp.EmailSent)

		require.Eventually(t, func() bool { return notifier.count() == 1 }, 2*time.Second, 10*time.Millisecond)
		opened := notifier.last()
		assert.Equal(t, services.RMAEventOpened, opened.Event)
		assert.Equal(t, "customer@example.com", opened.CustomerEmail)
		assert.Equal(t, "MES-RMA-490", opened.Token)

		// Get round-trips the stored fields
		getResp, err := flow.Get(ctx, "MES-RMA-490")
		require.NoError(t, err)
		assert.Equal(t, "Acme Controls", *getResp.Item.Client)
		assert.Equal(t, utils.DeviceStatusOpen, getResp.Item.DeviceStatus)
		// Blank optional fields stay null
		assert.Nil(t, getResp.Item.Month)

		// Search by device serial substring
		searchResp, err := flow.Search(ctx, &dto.SearchRMARequest{SearchType: "device_serial_number", SearchTerm: "SN-1"})
		require.NoError(t, err)
		require.Len(t, searchResp.Items, 1)
		assert.Equal(t, "MES-RMA-490", searchResp.Items[0].Token)

		// Close flips the status and reports the pre-closure fields
		closeResp, err := flow.Close(ctx, "MES-RMA-490", metadata)
		require.NoError(t, err)
		assert.Equal(t, utils.DeviceStatusClosed, closeResp.DeviceStatus)
		assert.Equal(t, "No display output", *closeResp.IssuesObserved)
		assert.True(t, closeResp.EmailSent)

		require.Eventually(t, func() bool { return notifier.count() == 2 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, services.RMAEventClosed, notifier.last().Event)

		// Delete, then the record is gone
		_, err = flow.Delete(ctx, "MES-RMA-490")
		require.NoError(t, err)

		_, err = flow.Get(ctx, "MES-RMA-490")
		assert.True(t, businessflow.IsRMANotFound(err))

		return nil
	})
	require.NoError(t, err)
}

func TestRMAFlowSubmitConcurrent(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestRMAFlow(testDB, nil, 440)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		const workers = 10

		var mu sync.Mutex
		var wg sync.WaitGroup
		tokens := make(map[string]bool)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				resp, err := flow.Submit(ctx, &dto.SubmitRMARequest{
					RMAFieldSet: dto.RMAFieldSet{Client: fmt.Sprintf("Client %d", n)},
				}, metadata)
				assert.NoError(t, err)
				mu.Lock()
				tokens[resp.Token] = true
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		// Every submission got a distinct token
		assert.Len(t, tokens, workers)

		listResp, err := flow.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, workers, listResp.Total)

		return nil
	})
	require.NoError(t, err)
}

func TestRMAFlowEdgeCases(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		notifier := &recordingNotifier{}
		flow := newTestRMAFlow(testDB, notifier, 440)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("UpdateUnknownToken", func(t *testing.T) {
			_, err := flow.Update(ctx, "MES-RMA-99999", &dto.UpdateRMARequest{})
			assert.True(t, businessflow.IsRMANotFound(err))
		})

		t.Run("CloseUnknownToken", func(t *testing.T) {
			_, err := flow.Close(ctx, "MES-RMA-99999", metadata)
			assert.True(t, businessflow.IsRMANotFound(err))
			assert.Zero(t, notifier.count())
		})

		t.Run("DeleteUnknownTokenSucceeds", func(t *testing.T) {
			resp, err := flow.Delete(ctx, "MES-RMA-99999")
			require.NoError(t, err)
			assert.Equal(t, "MES-RMA-99999", resp.Token)
		})

		t.Run("UnknownSearchTypeReturnsEmpty", func(t *testing.T) {
			resp, err := flow.Search(ctx, &dto.SearchRMARequest{SearchType: "customer_email", SearchTerm: "x"})
			require.NoError(t, err)
			assert.Empty(t, resp.Items)
		})

		t.Run("EmptySearchTermRejected", func(t *testing.T) {
			_, err := flow.Search(ctx, &dto.SearchRMARequest{SearchType: "rma", SearchTerm: ""})
			assert.True(t, businessflow.IsEmptySearchTerm(err))
		})

		t.Run("SubmitWithoutEmailSkipsNotification", func(t *testing.T) {
			resp, err := flow.Submit(ctx, &dto.SubmitRMARequest{
				RMAFieldSet: dto.RMAFieldSet{Client: "No Email Co"},
			}, metadata)
			require.NoError(t, err)
			assert.False(t, resp.EmailSent)
		})

		t.Run("UpdateNeverChangesToken", func(t *testing.T) {
			submitResp, err := flow.Submit(ctx, &dto.SubmitRMARequest{
				RMAFieldSet: dto.RMAFieldSet{Client: "Before"},
			}, metadata)
			require.NoError(t, err)

			_, err = flow.Update(ctx, submitResp.Token, &dto.UpdateRMARequest{
				RMAFieldSet: dto.RMAFieldSet{Client: "After", RMA: "RMA-7"},
			})
			require.NoError(t, err)

			getResp, err := flow.Get(ctx, submitResp.Token)
			require.NoError(t, err)
			assert.Equal(t, submitResp.Token, getResp.Item.Token)
			assert.Equal(t, "After", *getResp.Item.Client)
			assert.Equal(t, "RMA-7", *getResp.Item.RMA)
		})

		t.Run("SentinelStringsStoredAsNull", func(t *testing.T) {
			submitResp, err := flow.Submit(ctx, &dto.SubmitRMARequest{
				RMAFieldSet: dto.RMAFieldSet{Month: "None", Remark: "nan", Project: "  "},
			}, metadata)
			require.NoError(t, err)

			getResp, err := flow.Get(ctx, submitResp.Token)
			require.NoError(t, err)
			assert.Nil(t, getResp.Item.Month)
			assert.Nil(t, getResp.Item.Remark)
			assert.Nil(t, getResp.Item.Project)
		})

		return nil
	})
	require.NoError(t, err)
}
