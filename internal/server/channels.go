package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

type channelRequest struct {
	Name   string          `json:"name"`
	Kind   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request, tenant string) {
	var req channelRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Kind == "" {
		s.writeDetail(w, http.StatusBadRequest, "name and type are required")
		return
	}
	channel, err := s.db.CreateChannel(r.Context(), store.Channel{
		Name:    req.Name,
		Kind:    req.Kind,
		Config:  req.Config,
		OwnerID: tenant,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, channel)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request, tenant string) {
	channels, err := s.db.Channels(r.Context(), tenant)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteChannel(r.Context(), tenant, id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request, tenant string) {
	alerts, err := s.db.AlertHistory(r.Context(), tenant)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

type telegramChatsRequest struct {
	BotToken string `json:"bot_token"`
}

type telegramChat struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type telegramUpdate struct {
	Message *struct {
		Chat telegramChat `json:"chat"`
	} `json:"message"`
}

type telegramUpdatesResponse struct {
	OK          bool             `json:"ok"`
	Description string           `json:"description"`
	Result      []telegramUpdate `json:"result"`
}

type chatOption struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// handleTelegramChats asks the Bot API for recent updates and lists the
// chats the bot can see, so the dashboard can offer a chat picker when
// configuring a telegram channel. Updates without a message (bots being
// added to groups arrive as my_chat_member) carry no usable chat here.
func (s *Server) handleTelegramChats(w http.ResponseWriter, r *http.Request, _ string) {
	var req telegramChatsRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.BotToken == "" {
		s.writeDetail(w, http.StatusBadRequest, "bot_token is required")
		return
	}

	url := s.telegramAPI + "/bot" + req.BotToken + "/getUpdates"
	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		s.writeDetail(w, http.StatusBadRequest, "bot_token is not usable in a URL")
		return
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.writeDetail(w, http.StatusInternalServerError, "could not reach the Telegram API: "+err.Error())
		return
	}
	defer resp.Body.Close()

	var updates telegramUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&updates); err != nil {
		s.writeDetail(w, http.StatusInternalServerError, "could not reach the Telegram API: decoding response: "+err.Error())
		return
	}
	if !updates.OK {
		detail := updates.Description
		if detail == "" {
			detail = "request rejected"
		}
		s.writeDetail(w, http.StatusBadRequest, "Telegram API error: "+detail)
		return
	}

	seen := make(map[int64]bool)
	chats := make([]chatOption, 0)
	for _, update := range updates.Result {
		if update.Message == nil {
			continue
		}
		chat := update.Message.Chat
		title := chat.Title
		if title == "" {
			title = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
		}
		if chat.ID == 0 || title == "" || seen[chat.ID] {
			continue
		}
		seen[chat.ID] = true
		chats = append(chats, chatOption{ID: chat.ID, Title: title})
	}
	s.writeJSON(w, http.StatusOK, chats)
}
