package spy_api_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/yottascore1997/edutech-sub000/go/clients"
	"github.com/yottascore1997/edutech-sub000/go/internal/leaderboard"
	"github.com/yottascore1997/edutech-sub000/go/internal/session"
)

// SpyApiClient fetches the REST side of the game backend: the fresh session
// snapshot every app start needs (session state is never persisted locally),
// room joins, and the exam leaderboard rows.
type SpyApiClient struct {
	*clients.BaseClient
}

func NewSpyApiClient(baseURL, token string) *SpyApiClient {
	client := &SpyApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
	if token != "" {
		client.SetBearerToken(token)
	}
	return client
}

// sessionResponse is the snapshot payload the backend returns for a room.
type sessionResponse struct {
	SessionID  string           `json:"sessionId"`
	RoomCode   string           `json:"roomCode"`
	Phase      string           `json:"phase"`
	Players    []session.Player `json:"players"`
	MaxPlayers int              `json:"maxPlayers"`
	Timer      *struct {
		TotalSeconds     int `json:"totalSeconds"`
		RemainingSeconds int `json:"remainingSeconds"`
	} `json:"timer"`
}

// GetSession fetches the current snapshot for a room and maps it onto a
// Session ready to seed a reducer.
func (c *SpyApiClient) GetSession(ctx context.Context, roomCode string) (session.Session, error) {
	body, err := c.Get(ctx, SessionEndpoint+"?roomCode="+url.QueryEscape(roomCode))
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to fetch session snapshot: %w", err)
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return session.Session{}, fmt.Errorf("failed to parse session snapshot: %w", err)
	}

	sess := session.NewSession(resp.SessionID, resp.RoomCode)
	sess.Players = resp.Players
	if resp.MaxPlayers > 0 {
		sess.MaxPlayers = resp.MaxPlayers
	}
	if phase := session.Phase(resp.Phase); phase != "" {
		sess.Phase = phase
	}
	if resp.Timer != nil {
		sess.Timer = session.TimerState{
			TotalSeconds:     resp.Timer.TotalSeconds,
			RemainingSeconds: resp.Timer.RemainingSeconds,
		}
	}
	return sess, nil
}

// JoinRoom registers the viewer in a room and returns the resulting snapshot.
func (c *SpyApiClient) JoinRoom(ctx context.Context, roomCode, userID, name string) (session.Session, error) {
	payload, err := json.Marshal(map[string]string{
		"roomCode": roomCode,
		"userId":   userID,
		"name":     name,
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to marshal join request: %w", err)
	}

	body, err := c.Post(ctx, JoinRoomEndpoint, bytes.NewReader(payload))
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to join room: %w", err)
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return session.Session{}, fmt.Errorf("failed to parse join response: %w", err)
	}

	sess := session.NewSession(resp.SessionID, resp.RoomCode)
	sess.Players = resp.Players
	if resp.MaxPlayers > 0 {
		sess.MaxPlayers = resp.MaxPlayers
	}
	if phase := session.Phase(resp.Phase); phase != "" {
		sess.Phase = phase
	}
	return sess, nil
}

// GetLeaderboard fetches the exam leaderboard rows for an exam id.
func (c *SpyApiClient) GetLeaderboard(ctx context.Context, examID string) ([]leaderboard.Entry, error) {
	body, err := c.Get(ctx, LeaderboardEndpoint+"?examId="+url.QueryEscape(examID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}

	var entries []leaderboard.Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse leaderboard: %w", err)
	}
	return entries, nil
}
