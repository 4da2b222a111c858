package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"xengage/pkg/collector"
	"xengage/pkg/logger"
	"xengage/pkg/models"
)

func record(handle, userID string, kind models.InteractionKind) models.InteractionRecord {
	return models.InteractionRecord{
		Identity: models.UserIdentity{
			Handle:         handle,
			DisplayName:    "The " + handle,
			PlatformUserID: userID,
		},
		Kind: kind,
	}
}

func fullResult() *collector.Result {
	replies := []models.InteractionRecord{
		{
			Identity:      models.UserIdentity{Handle: "dana", DisplayName: "Dana", PlatformUserID: "301"},
			Kind:          models.KindReply,
			ReplyText:     "totally agree with this take",
			ReplySourceID: "501",
			ObservedAt:    time.Date(2026, 8, 20, 12, 34, 56, 0, time.UTC),
		},
		{
			Identity:  models.UserIdentity{Handle: "erin", DisplayName: "Erin"},
			Kind:      models.KindReply,
			ReplyText: "found via the browser",
		},
	}
	res := &collector.Result{
		PostID: "1001",
		Likes: []models.InteractionRecord{
			record("alice", "101", models.KindLike),
			record("bob", "102", models.KindLike),
		},
		Reposts: []models.InteractionRecord{
			record("carol", "201", models.KindRepost),
		},
		Replies: replies,
	}
	res.Combined = append(append(append([]models.InteractionRecord{}, res.Likes...), res.Reposts...), res.Replies...)
	return res
}

func TestBuildAllSheets(t *testing.T) {
	w := NewWriter(logger.NewTestLogger())

	f, err := w.Build(fullResult())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetCombined, SheetLikes, SheetReposts, SheetReplies}, f.GetSheetList())

	rows, err := f.GetRows(SheetCombined)
	require.NoError(t, err)
	require.Len(t, rows, 6, "header plus five records")
	assert.Equal(t, []string{"Handle", "Display Name", "User ID", "Kind"}, rows[0])
	assert.Equal(t, "alice", rows[1][0])
	assert.Equal(t, "Like", rows[1][3])

	// Snowflake ids survive as text.
	got, err := f.GetCellValue(SheetCombined, "C2")
	require.NoError(t, err)
	assert.Equal(t, "101", got)
}

func TestBuildRepliesColumns(t *testing.T) {
	w := NewWriter(logger.NewTestLogger())

	f, err := w.Build(fullResult())
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetReplies)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Handle", "Display Name", "User ID", "Kind", "Reply Text", "Reply Source ID", "Observed At"}, rows[0])

	assert.Equal(t, "dana", rows[1][0])
	assert.Equal(t, "totally agree with this take", rows[1][4])
	assert.Equal(t, "501", rows[1][5])
	assert.Equal(t, "2026-08-20T12:34:56Z", rows[1][6])

	// A browser-sourced reply has no id, no user id and no timestamp.
	assert.Equal(t, "erin", rows[2][0])
	assert.Equal(t, "found via the browser", rows[2][4])
}

func TestBuildEmptyResult(t *testing.T) {
	w := NewWriter(logger.NewTestLogger())

	f, err := w.Build(&collector.Result{PostID: "1001"})
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetCombined}, f.GetSheetList(), "empty kinds get no sheet, combined always exists")

	rows, err := f.GetRows(SheetCombined)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestBuildSkipsEmptyKinds(t *testing.T) {
	w := NewWriter(logger.NewTestLogger())

	res := &collector.Result{
		PostID: "1001",
		Replies: []models.InteractionRecord{
			{Identity: models.UserIdentity{Handle: "dana"}, Kind: models.KindReply, ReplyText: "only replies"},
		},
	}
	res.Combined = append([]models.InteractionRecord{}, res.Replies...)

	f, err := w.Build(res)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetCombined, SheetReplies}, f.GetSheetList())
}

func TestSaveWritesWorkbook(t *testing.T) {
	w := NewWriter(logger.NewTestLogger())
	path := filepath.Join(t.TempDir(), "engagement_1001_20260820-123456.xlsx")

	require.NoError(t, w.Save(fullResult(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetCombined, SheetLikes, SheetReposts, SheetReplies}, f.GetSheetList())
}
