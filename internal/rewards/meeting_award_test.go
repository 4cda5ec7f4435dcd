package rewards

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func insertMeeting(t *testing.T, database *sql.DB, title string) int64 {
	t.Helper()
	res, err := database.Exec(
		"INSERT INTO meetings (title, meeting_date) VALUES (?, ?)",
		title, time.Now().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("фикстура собрания: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func markAttendance(t *testing.T, database *sql.DB, meetingID, citizenID int64, present int) {
	t.Helper()
	_, err := database.Exec(
		"INSERT INTO attendance (citizen_id, meeting_id, is_present) VALUES (?, ?, ?)",
		citizenID, meetingID, present)
	if err != nil {
		t.Fatalf("фикстура посещаемости: %v", err)
	}
}

func TestAwardMeetingAttendance(t *testing.T) {
	ctx := context.Background()
	svc, database := newService(t)

	meetingID := insertMeeting(t, database, "Общее собрание")
	present1 := insertCitizen(t, database, "Присутствовал Первый", 1)
	present2 := insertCitizen(t, database, "Присутствовал Второй", 1)
	absent := insertCitizen(t, database, "Отсутствовал", 1)
	gone := insertCitizen(t, database, "Выбывший", 0)

	markAttendance(t, database, meetingID, present1, 1)
	markAttendance(t, database, meetingID, present2, 1)
	markAttendance(t, database, meetingID, absent, 0)
	markAttendance(t, database, meetingID, gone, 1)

	awarded, err := svc.AwardMeetingAttendance(ctx, meetingID, nil)
	if err != nil {
		t.Fatalf("начисление за собрание: %v", err)
	}
	// Выбывший и отсутствовавший баллов не получают.
	if awarded != 2 {
		t.Fatalf("ожидали 2 начисления, получили %d", awarded)
	}

	for _, id := range []int64{present1, present2} {
		if got := totalPoints(t, database, id); got != 10 {
			t.Fatalf("гражданин %d: %d баллов, ожидали 10", id, got)
		}
	}
	if got := totalPoints(t, database, absent); got != 0 {
		t.Fatalf("отсутствовавший получил баллы: %d", got)
	}

	// Начисление зеркалится в строку посещаемости.
	var mirrored int
	if err := database.QueryRow(
		"SELECT points_earned FROM attendance WHERE citizen_id = ? AND meeting_id = ?",
		present1, meetingID).Scan(&mirrored); err != nil {
		t.Fatalf("чтение points_earned: %v", err)
	}
	if mirrored != 10 {
		t.Fatalf("points_earned = %d, ожидали 10", mirrored)
	}

	// Привязка к собранию видна в истории.
	history, err := svc.History(ctx, present1, 0)
	if err != nil {
		t.Fatalf("история: %v", err)
	}
	if len(history) != 1 || history[0].MeetingID == nil || *history[0].MeetingID != meetingID {
		t.Fatalf("история без привязки к собранию: %+v", history)
	}
}
