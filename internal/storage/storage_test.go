package storage

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"vckeeper/internal/votekick"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "main.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func kickRec(target, name string, action votekick.Action) votekick.HistoryRecord {
	return votekick.HistoryRecord{
		GuildID:    "g1",
		TargetID:   target,
		TargetName: name,
		Action:     action,
		Result:     votekick.ResultSuccess,
		Timestamp:  time.Now().UTC(),
	}
}

func TestVotekickHistory_AppendOnlyOrder(t *testing.T) {
	s := openTestStorage(t)

	if err := s.AppendVotekick(kickRec("u1", "Alice", votekick.ActionDisconnect)); err != nil {
		t.Fatalf("AppendVotekick: %v", err)
	}
	if err := s.AppendVotekick(kickRec("u2", "Bob", votekick.ActionNone)); err != nil {
		t.Fatalf("AppendVotekick: %v", err)
	}

	hist, err := s.VotekickHistory("g1")
	if err != nil {
		t.Fatalf("VotekickHistory: %v", err)
	}
	if len(hist) != 2 || hist[0].TargetID != "u1" || hist[1].TargetID != "u2" {
		t.Errorf("history = %+v, want u1 then u2", hist)
	}

	only, err := s.UserVotekickHistory("g1", "u2")
	if err != nil {
		t.Fatalf("UserVotekickHistory: %v", err)
	}
	if len(only) != 1 || only[0].TargetID != "u2" {
		t.Errorf("user history = %+v, want only u2", only)
	}
}

func TestVotekickLeaderboard_RanksRemovalsOnly(t *testing.T) {
	s := openTestStorage(t)

	// Three failed votes against Alice keep her off the board.
	for i := 0; i < 3; i++ {
		if err := s.AppendVotekick(kickRec("u1", "Alice", votekick.ActionNone)); err != nil {
			t.Fatalf("AppendVotekick: %v", err)
		}
	}
	if err := s.AppendVotekick(kickRec("u2", "Bob", votekick.ActionKick)); err != nil {
		t.Fatalf("AppendVotekick: %v", err)
	}
	if err := s.AppendVotekick(kickRec("u3", "Carol", votekick.ActionDisconnect)); err != nil {
		t.Fatalf("AppendVotekick: %v", err)
	}
	if err := s.AppendVotekick(kickRec("u3", "Carol", votekick.ActionDisconnect)); err != nil {
		t.Fatalf("AppendVotekick: %v", err)
	}

	board, err := s.VotekickLeaderboard("g1")
	if err != nil {
		t.Fatalf("VotekickLeaderboard: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("leaderboard size = %d, want 2 (no entry without a removal)", len(board))
	}
	if board[0].TargetID != "u3" || board[0].Removals != 2 || board[0].Times != 2 {
		t.Errorf("top entry = %+v, want Carol with 2 removals", board[0])
	}
	if board[1].TargetID != "u2" || board[1].Removals != 1 {
		t.Errorf("second entry = %+v, want Bob with 1 removal", board[1])
	}
}

func TestCommandHistory_CappedAtLimit(t *testing.T) {
	s := openTestStorage(t)

	for i := 0; i < commandHistoryLimit+5; i++ {
		rec := CommandRecord{UserID: "u1", Command: "play", Datetime: time.Now()}
		if err := s.AppendCommand("g1", rec); err != nil {
			t.Fatalf("AppendCommand: %v", err)
		}
	}

	hist, err := s.CommandHistory("g1")
	if err != nil {
		t.Fatalf("CommandHistory: %v", err)
	}
	if len(hist) != commandHistoryLimit {
		t.Errorf("history size = %d, want %d", len(hist), commandHistoryLimit)
	}
}

func TestUploads_AppendAndDelete(t *testing.T) {
	s := openTestStorage(t)

	recs := []UploadRecord{
		{Service: "catbox", FileName: "a.png", URL: "https://files.test/a"},
		{Service: "litterbox", FileName: "b.png", URL: "https://files.test/b", Lifetime: "24h"},
	}
	for _, rec := range recs {
		if err := s.AppendUpload("u1", rec); err != nil {
			t.Fatalf("AppendUpload: %v", err)
		}
	}

	removed, err := s.DeleteUpload("u1", "https://files.test/a")
	if err != nil || !removed {
		t.Fatalf("DeleteUpload = %v/%v, want removed", removed, err)
	}
	removed, err = s.DeleteUpload("u1", "https://files.test/a")
	if err != nil || removed {
		t.Fatalf("second DeleteUpload = %v/%v, want no-op", removed, err)
	}

	left, err := s.Uploads("u1")
	if err != nil {
		t.Fatalf("Uploads: %v", err)
	}
	if len(left) != 1 || left[0].URL != "https://files.test/b" {
		t.Errorf("uploads = %+v, want only b", left)
	}
}
