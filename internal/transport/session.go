package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"sotto/internal/domain"
)

// Session is an authenticated routing-server session. Sessions are
// lightweight (a pointer to the parent Client plus an access token) and
// safe for concurrent use.
type Session struct {
	client      *Client
	accessToken string
	userID      domain.UserID
	deviceID    domain.DeviceID
}

// UserID returns the fully-qualified user ID for this session.
func (s *Session) UserID() domain.UserID { return s.userID }

// DeviceID returns the device ID issued at login.
func (s *Session) DeviceID() domain.DeviceID { return s.deviceID }

// Credential returns the session credential bundle for persistence.
func (s *Session) Credential() domain.Credential {
	return domain.Credential{
		AccessToken:  s.accessToken,
		UserID:       s.userID,
		DeviceID:     s.deviceID,
		ServerOrigin: s.client.baseURL,
	}
}

// CloseIdleConnections drops pooled connections on the parent Client.
func (s *Session) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

type whoAmIResponse struct {
	UserID   domain.UserID   `json:"user_id"`
	DeviceID domain.DeviceID `json:"device_id,omitempty"`
}

// WhoAmI validates the access token and returns the user ID. Useful for
// checking whether a stored token is still accepted.
func (s *Session) WhoAmI(ctx context.Context) (domain.UserID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/client/v1/account/whoami", s.accessToken, nil)
	if err != nil {
		return "", fmt.Errorf("transport: whoami failed: %w", err)
	}
	var response whoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("transport: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// Logout revokes the access token server-side.
func (s *Session) Logout(ctx context.Context) error {
	if _, err := s.client.doRequest(ctx, http.MethodPost, "/client/v1/logout", s.accessToken, struct{}{}); err != nil {
		return fmt.Errorf("transport: logout failed: %w", err)
	}
	return nil
}

// Sync performs one long-poll against the server. since is the cursor
// from the previous batch (empty for a fresh baseline); timeoutMS is
// the server-side hold time in milliseconds.
func (s *Session) Sync(ctx context.Context, since string, timeoutMS int) (*domain.SyncResponse, error) {
	query := url.Values{}
	if since != "" {
		query.Set("since", since)
	}
	query.Set("timeout", strconv.Itoa(timeoutMS))

	body, err := s.client.doRequest(ctx, http.MethodGet, "/client/v1/sync?"+query.Encode(), s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: sync failed: %w", err)
	}
	var response domain.SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("transport: failed to parse sync response: %w", err)
	}
	return &response, nil
}

type createRoomResponse struct {
	RoomID domain.RoomID `json:"room_id"`
}

// CreateRoom creates a new room and returns its ID.
func (s *Session) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.RoomID, error) {
	body, err := s.client.doRequest(ctx, http.MethodPost, "/client/v1/rooms/create", s.accessToken, req)
	if err != nil {
		return "", fmt.Errorf("transport: create room failed: %w", err)
	}
	var response createRoomResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("transport: failed to parse createRoom response: %w", err)
	}
	s.client.logger.Info("created room",
		"room_id", response.RoomID,
		"direct", req.Direct,
		"encrypted", req.Encrypted,
	)
	return response.RoomID, nil
}

// JoinRoom joins a room by ID.
func (s *Session) JoinRoom(ctx context.Context, room domain.RoomID) error {
	path := "/client/v1/rooms/" + url.PathEscape(room.String()) + "/join"
	if _, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{}); err != nil {
		return fmt.Errorf("transport: join room %s failed: %w", room, err)
	}
	return nil
}

type inviteRequest struct {
	UserID domain.UserID `json:"user_id"`
}

// InviteUser invites a user to a room.
func (s *Session) InviteUser(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	path := "/client/v1/rooms/" + url.PathEscape(room.String()) + "/invite"
	if _, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, inviteRequest{UserID: user}); err != nil {
		return fmt.Errorf("transport: invite %s to %s failed: %w", user, room, err)
	}
	return nil
}

type joinedRoomsResponse struct {
	JoinedRooms []domain.RoomID `json:"joined_rooms"`
}

// JoinedRooms returns the rooms this user has joined, in the server's
// stable enumeration order.
func (s *Session) JoinedRooms(ctx context.Context) ([]domain.RoomID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/client/v1/joined_rooms", s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: joined rooms failed: %w", err)
	}
	var response joinedRoomsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("transport: failed to parse joined_rooms response: %w", err)
	}
	return response.JoinedRooms, nil
}

type roomMembersResponse struct {
	Members []domain.RoomMember `json:"members"`
}

// RoomMembers returns the current members of a room.
func (s *Session) RoomMembers(ctx context.Context, room domain.RoomID) ([]domain.RoomMember, error) {
	path := "/client/v1/rooms/" + url.PathEscape(room.String()) + "/members"
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: members of %s failed: %w", room, err)
	}
	var response roomMembersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("transport: failed to parse members response: %w", err)
	}
	return response.Members, nil
}

type sendEventResponse struct {
	EventID domain.EventID `json:"event_id"`
}

// SendEvent posts an event to a room with a fresh transaction ID and
// returns the event ID the server assigned.
func (s *Session) SendEvent(ctx context.Context, room domain.RoomID, eventType string, content any) (domain.EventID, error) {
	path := "/client/v1/rooms/" + url.PathEscape(room.String()) +
		"/send/" + url.PathEscape(eventType) +
		"/" + url.PathEscape(uuid.NewString())
	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, content)
	if err != nil {
		return "", fmt.Errorf("transport: send %s to %s failed: %w", eventType, room, err)
	}
	var response sendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("transport: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

type uploadResponse struct {
	ContentURI string `json:"content_uri"`
}

// UploadMedia stores a blob on the server and returns its content URI.
func (s *Session) UploadMedia(ctx context.Context, data []byte, filename string) (string, error) {
	query := url.Values{}
	query.Set("filename", filename)
	body, err := s.client.doUpload(ctx, "/client/v1/media/upload?"+query.Encode(), s.accessToken, data)
	if err != nil {
		return "", fmt.Errorf("transport: media upload failed: %w", err)
	}
	var response uploadResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("transport: failed to parse upload response: %w", err)
	}
	return response.ContentURI, nil
}

// UploadKeys publishes this device's keys and pre-keys.
func (s *Session) UploadKeys(ctx context.Context, upload domain.KeyUpload) error {
	if _, err := s.client.doRequest(ctx, http.MethodPost, "/client/v1/keys/upload", s.accessToken, upload); err != nil {
		return fmt.Errorf("transport: key upload failed: %w", err)
	}
	return nil
}

type queryKeysRequest struct {
	UserIDs []domain.UserID `json:"user_ids"`
}

type queryKeysResponse struct {
	Devices map[domain.UserID][]domain.DeviceKeys `json:"devices"`
}

// QueryDeviceKeys returns all known device keys for each listed user.
func (s *Session) QueryDeviceKeys(ctx context.Context, users []domain.UserID) (map[domain.UserID][]domain.DeviceKeys, error) {
	body, err := s.client.doRequest(ctx, http.MethodPost, "/client/v1/keys/query", s.accessToken, queryKeysRequest{UserIDs: users})
	if err != nil {
		return nil, fmt.Errorf("transport: key query failed: %w", err)
	}
	var response queryKeysResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("transport: failed to parse key query response: %w", err)
	}
	return response.Devices, nil
}

type claimRequest struct {
	UserID   domain.UserID   `json:"user_id"`
	DeviceID domain.DeviceID `json:"device_id"`
}

type claimResponse struct {
	Bundle domain.PreKeyBundle `json:"bundle"`
}

// ClaimPreKey claims a pre-key bundle (consuming at most one one-time
// pre-key) for a specific device.
func (s *Session) ClaimPreKey(ctx context.Context, user domain.UserID, device domain.DeviceID) (domain.PreKeyBundle, error) {
	body, err := s.client.doRequest(ctx, http.MethodPost, "/client/v1/keys/claim", s.accessToken, claimRequest{UserID: user, DeviceID: device})
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("transport: pre-key claim for %s/%s failed: %w", user, device, err)
	}
	var response claimResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("transport: failed to parse claim response: %w", err)
	}
	return response.Bundle, nil
}

type toDeviceRequest struct {
	UserID   domain.UserID   `json:"user_id"`
	DeviceID domain.DeviceID `json:"device_id"`
	Content  any             `json:"content"`
}

// SendToDevice delivers an event directly to one device; it arrives in
// the target's sync stream under to_device.
func (s *Session) SendToDevice(ctx context.Context, user domain.UserID, device domain.DeviceID, eventType string, content any) error {
	path := "/client/v1/send_to_device/" + url.PathEscape(eventType) + "/" + url.PathEscape(uuid.NewString())
	if _, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, toDeviceRequest{
		UserID:   user,
		DeviceID: device,
		Content:  content,
	}); err != nil {
		return fmt.Errorf("transport: to-device send to %s/%s failed: %w", user, device, err)
	}
	return nil
}

// Compile-time check: *Session implements domain.RoutingSession.
var _ domain.RoutingSession = (*Session)(nil)
