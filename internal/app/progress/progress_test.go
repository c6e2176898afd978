package progress

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify-preorder-sync/internal/domain/model"
)

func TestTrackerEveryRowLandsInOneBucket(t *testing.T) {
	statuses := []model.RowStatus{
		model.RowUpdated, model.RowUpdated, model.RowNoProduct, model.RowNoVariant,
		model.RowError, model.RowException, model.RowUpdated,
	}
	tr := NewTracker("job-1", len(statuses), 2)

	var wg sync.WaitGroup
	for i, st := range statuses {
		wg.Add(1)
		go func(i int, st model.RowStatus) {
			defer wg.Done()
			o := model.UploadRowOutcome{RowIndex: i, SKU: fmt.Sprintf("S%d", i), Status: st}
			if st == model.RowError {
				o.Error = &model.RowErrorDetail{Message: "invalid", Fields: []string{"metafields.1.value"}}
			}
			tr.Record(o)
		}(i, st)
	}
	wg.Wait()

	s := tr.Summary()
	assert.Equal(t, 3, s.SuccessCount)
	assert.Equal(t, 1, s.Exceptions)
	assert.Equal(t, s.TotalRows, s.SuccessCount+len(s.NotFoundProduct)+len(s.NotFoundVariant)+len(s.Errors))
	require.Len(t, s.Errors, 2)
	assert.Equal(t, 4, s.Errors[0].Row)
	assert.Equal(t, "invalid", s.Errors[0].Message)
	assert.Equal(t, model.RowException, s.Errors[1].Status)

	assert.Equal(t, model.JobProgress{Processed: 7, Successful: 3, Failed: 4}, tr.Progress())
}

func TestSummaryJSONUsesEmptyLists(t *testing.T) {
	b, err := json.Marshal(NewTracker("job-1", 0, 0).Summary())
	require.NoError(t, err)
	assert.JSONEq(t, `{"uploadId":"job-1","totalRows":0,"skippedRows":0,"successCount":0,
		"notFoundProduct":[],"notFoundVariant":[],"errors":[],"exceptions":0,"policyUpdated":0}`, string(b))
}

func TestRecordPolicy(t *testing.T) {
	tr := NewTracker("job-1", 2, 0)
	tr.RecordPolicy(1, []PolicyFailure{{Row: 1, SKU: "B", Policy: model.PolicyContinue, Message: "locked"}})

	s := tr.Summary()
	assert.Equal(t, 1, s.PolicyUpdated)
	require.Len(t, s.PolicyFailures, 1)
	assert.Equal(t, "B", s.PolicyFailures[0].SKU)
}

func TestFromCounts(t *testing.T) {
	p := FromCounts(model.OutcomeCounts{
		model.RowUpdated:   5,
		model.RowNoVariant: 2,
		model.RowException: 1,
	})
	assert.Equal(t, model.JobProgress{Processed: 8, Successful: 5, Failed: 3}, p)
}

func TestNewPollViewCapsErrors(t *testing.T) {
	failures := make([]model.UploadRowOutcome, 15)
	view := NewPollView(model.UploadJob{ID: "job-1", Status: model.JobProcessing}, failures)
	assert.Len(t, view.RecentErrors, PollErrorLimit)

	b, err := json.Marshal(NewPollView(model.UploadJob{ID: "job-2"}, nil))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"uploadId":"job-2"`)
	assert.Contains(t, string(b), `"recentErrors":[]`)
}
