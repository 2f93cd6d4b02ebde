package telegram

import (
	"sync"

	"neuromap/api/internal/impact"
)

var (
	lastSession sync.Map // chatID -> string (session id последнего скана)
	chatPolicy  sync.Map // chatID -> impact.Policy
)

func setSession(chatID int64, id string) { lastSession.Store(chatID, id) }
func getSession(chatID int64) string {
	if v, ok := lastSession.Load(chatID); ok {
		if s, _ := v.(string); s != "" {
			return s
		}
	}
	return ""
}

func setPolicy(chatID int64, p impact.Policy) { chatPolicy.Store(chatID, p) }
func getPolicy(chatID int64, def impact.Policy) impact.Policy {
	if v, ok := chatPolicy.Load(chatID); ok {
		if p, _ := v.(impact.Policy); p != "" {
			return p
		}
	}
	return def
}

func resetChat(chatID int64) {
	lastSession.Delete(chatID)
	chatPolicy.Delete(chatID)
}
