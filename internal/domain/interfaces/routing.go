package interfaces

import (
	"context"

	domaintypes "sotto/internal/domain/types"
)

// RoutingSession is an authenticated connection to the routing server.
// The engine is a conforming client of the server's HTTPS JSON contract;
// this interface is what the facade, syncer, and crypto manager program
// against (and what tests mock).
type RoutingSession interface {
	UserID() domaintypes.UserID
	DeviceID() domaintypes.DeviceID

	// WhoAmI validates the access token.
	WhoAmI(ctx context.Context) (domaintypes.UserID, error)

	// Logout revokes the server-side token.
	Logout(ctx context.Context) error

	// Sync performs one long-poll against the server. since is the
	// cursor from the previous batch; empty requests a fresh baseline.
	// timeoutMS is the server-side hold time.
	Sync(ctx context.Context, since string, timeoutMS int) (*domaintypes.SyncResponse, error)

	CreateRoom(ctx context.Context, req domaintypes.CreateRoomRequest) (domaintypes.RoomID, error)
	JoinRoom(ctx context.Context, room domaintypes.RoomID) error
	InviteUser(ctx context.Context, room domaintypes.RoomID, user domaintypes.UserID) error
	JoinedRooms(ctx context.Context) ([]domaintypes.RoomID, error)
	RoomMembers(ctx context.Context, room domaintypes.RoomID) ([]domaintypes.RoomMember, error)

	// SendEvent posts an event with a client-generated transaction ID,
	// making the send idempotent under transport retry. The engine
	// itself never retries sends.
	SendEvent(ctx context.Context, room domaintypes.RoomID, eventType string, content any) (domaintypes.EventID, error)

	// UploadMedia stores a blob and returns its content URI.
	UploadMedia(ctx context.Context, data []byte, filename string) (string, error)

	// UploadKeys publishes this device's keys and pre-keys.
	UploadKeys(ctx context.Context, upload domaintypes.KeyUpload) error

	// QueryDeviceKeys returns all known devices for each listed user.
	QueryDeviceKeys(ctx context.Context, users []domaintypes.UserID) (map[domaintypes.UserID][]domaintypes.DeviceKeys, error)

	// ClaimPreKey claims a one-time pre-key bundle for a specific device.
	ClaimPreKey(ctx context.Context, user domaintypes.UserID, device domaintypes.DeviceID) (domaintypes.PreKeyBundle, error)

	// SendToDevice delivers an event directly to one device.
	SendToDevice(ctx context.Context, user domaintypes.UserID, device domaintypes.DeviceID, eventType string, content any) error
}
