package domain

import (
	interfaces "sotto/internal/domain/interfaces"
	types "sotto/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID      = types.UserID
	RoomID      = types.RoomID
	EventID     = types.EventID
	DeviceID    = types.DeviceID
	SessionID   = types.SessionID
	PreKeyID    = types.PreKeyID
	Fingerprint = types.Fingerprint

	X25519Public   = types.X25519Public
	X25519Private  = types.X25519Private
	Ed25519Public  = types.Ed25519Public
	Ed25519Private = types.Ed25519Private

	Identity            = types.Identity
	DeviceKeys          = types.DeviceKeys
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PreKeyBundle        = types.PreKeyBundle
	PreKeyMessage       = types.PreKeyMessage
	KeyUpload           = types.KeyUpload

	Credential = types.Credential

	Message             = types.Message
	MessageKind         = types.MessageKind
	Room                = types.Room
	RoomInvite          = types.RoomInvite
	VerificationRequest = types.VerificationRequest

	OutboundRoomSession = types.OutboundRoomSession
	InboundRoomSession  = types.InboundRoomSession
	RoomKeyShare        = types.RoomKeyShare
	TrustRecord         = types.TrustRecord

	RatchetHeader    = types.RatchetHeader
	RatchetState     = types.RatchetState
	PairwiseChannel  = types.PairwiseChannel
	PairwiseEnvelope = types.PairwiseEnvelope

	Event             = types.Event
	ToDeviceEvent     = types.ToDeviceEvent
	MessageContent    = types.MessageContent
	EncryptedContent  = types.EncryptedContent
	MemberContent     = types.MemberContent
	NameContent       = types.NameContent
	TopicContent      = types.TopicContent
	EncryptionContent = types.EncryptionContent
	RoomMember        = types.RoomMember
	SyncResponse      = types.SyncResponse
	RoomsSection      = types.RoomsSection
	JoinedRoomSync    = types.JoinedRoomSync
	InvitedRoomSync   = types.InvitedRoomSync
	LeftRoomSync      = types.LeftRoomSync
	TimelineSection   = types.TimelineSection
	StateSection      = types.StateSection
	ToDeviceSection   = types.ToDeviceSection
	CreateRoomRequest = types.CreateRoomRequest
)

// Interface aliases from the interfaces subpackage.
type (
	CredentialStore  = interfaces.CredentialStore
	IdentityStore    = interfaces.IdentityStore
	PreKeyStore      = interfaces.PreKeyStore
	ChannelStore     = interfaces.ChannelStore
	RoomSessionStore = interfaces.RoomSessionStore
	TrustStore       = interfaces.TrustStore
	CursorStore      = interfaces.CursorStore
	DirectRoomStore  = interfaces.DirectRoomStore

	RoutingSession  = interfaces.RoutingSession
	IdentityService = interfaces.IdentityService
)

// Re-exported event type constants.
const (
	EventTypeMessage    = types.EventTypeMessage
	EventTypeEncrypted  = types.EventTypeEncrypted
	EventTypeMember     = types.EventTypeMember
	EventTypeName       = types.EventTypeName
	EventTypeTopic      = types.EventTypeTopic
	EventTypeEncryption = types.EventTypeEncryption
	EventTypeKeyShare   = types.EventTypeKeyShare

	GroupSessionAlgorithm = types.GroupSessionAlgorithm

	KindText   = types.KindText
	KindImage  = types.KindImage
	KindFile   = types.KindFile
	KindNotice = types.KindNotice
)
