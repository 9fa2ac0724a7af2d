package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key builders. Session list keys share a per-user prefix so one write can drop
// every page and filter combination for that user.

func SessionKey(sessionID string) string {
	return "session:" + sessionID
}

func SessionRemindersKey(sessionID string) string {
	return "session:" + sessionID + ":reminders"
}

// UserSessionsPrefix covers every list key of userID
func UserSessionsPrefix(userID string) string {
	return "sessions:user:" + userID + ":"
}

func UserSessionsKey(userID, role string, statuses []string, page, pageSize int) string {
	sorted := append([]string(nil), statuses...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s%s:%s:%d:%d", UserSessionsPrefix(userID), role, strings.Join(sorted, ","), page, pageSize)
}

func AvailabilityKey(mentorID string) string {
	return "availability:" + mentorID
}

func ReviewsKey(userID string) string {
	return "reviews:" + userID
}

func RatingKey(userID string) string {
	return "rating:" + userID
}

func ProfileKey(userID string) string {
	return "profile:" + userID
}
