package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/joblens/jobscraper/internal/scraper"
)

func testRecord(id string) scraper.JobRecord {
	return scraper.JobRecord{
		JobID:          id,
		Title:          "Go Developer",
		Company:        "Acme Corp",
		Location:       "Austin, TX",
		URL:            "https://jobs.example/view/" + id,
		Salary:         "$140k",
		Source:         scraper.SourceGenericSearch,
		SearchRegion:   "austin",
		SearchKeywords: "go developer",
		ExtractedAt:    time.Unix(1700000000, 0).UTC(),
	}
}

func recordArgs(rec scraper.JobRecord) []any {
	return []any{
		rec.JobID,
		rec.Title,
		rec.Company,
		rec.Location,
		rec.URL,
		rec.Salary,
		rec.Summary,
		rec.PostedDate,
		string(rec.Source),
		rec.SearchRegion,
		rec.SearchKeywords,
		rec.ExtractedAt,
		rec.Sponsored,
		rec.EasyApply,
	}
}

func TestBulkInsertCountsInsertedRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	fresh := testRecord("id-1")
	dupe := testRecord("id-2")

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(recordArgs(fresh)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Conflict on job_id: zero rows affected, not an error.
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(recordArgs(dupe)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := store.BulkInsert(context.Background(), []scraper.JobRecord{fresh, dupe})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertRejectsMissingJobID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	rec := testRecord("")
	_, err = store.BulkInsert(context.Background(), []scraper.JobRecord{rec})
	require.Error(t, err)
}

func TestRecentJobsFiltersBySite(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	rec := testRecord("id-1")
	rows := pgxmock.NewRows([]string{
		"job_id", "title", "company", "location", "url", "salary", "summary",
		"posted_date", "source", "search_region", "search_keywords",
		"extracted_at", "sponsored", "easy_apply",
	}).AddRow(
		rec.JobID, rec.Title, rec.Company, rec.Location, rec.URL, rec.Salary,
		rec.Summary, rec.PostedDate, string(rec.Source), rec.SearchRegion,
		rec.SearchKeywords, rec.ExtractedAt, rec.Sponsored, rec.EasyApply,
	)

	mock.ExpectQuery(`FROM jobs WHERE source = \$1`).
		WithArgs("generic-search").
		WillReturnRows(rows)

	records, err := store.RecentJobs(context.Background(), "generic-search", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, rec, records[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewStoreWithPool(mock, "jobs; DROP TABLE jobs")
	require.Error(t, err)

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "jobs", store.table)
}
