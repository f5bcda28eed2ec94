package roomkeys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sotto/internal/crypto"
	"sotto/internal/domain"
)

const oneTimePreKeyBatch = 20

// RotationPolicy bounds the lifetime of an outbound room session. When
// either limit is exceeded the next send establishes a fresh session.
type RotationPolicy struct {
	MaxMessages uint32
	MaxAge      time.Duration
}

// DefaultRotationPolicy rotates after 100 messages or 7 days, whichever
// comes first.
func DefaultRotationPolicy() RotationPolicy {
	return RotationPolicy{MaxMessages: 100, MaxAge: 7 * 24 * time.Hour}
}

// Config wires the crypto session manager to its stores and the routing
// server.
type Config struct {
	Passphrase string
	Identity   domain.IdentityService
	PreKeys    domain.PreKeyStore
	Channels   domain.ChannelStore
	Sessions   domain.RoomSessionStore
	Trust      domain.TrustStore
	Routing    domain.RoutingSession
	Policy     RotationPolicy
	Logger     *slog.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Service manages all encryption state for one device.
type Service struct {
	passphrase  string
	identitySvc domain.IdentityService
	prekeys     domain.PreKeyStore
	channels    domain.ChannelStore
	sessions    domain.RoomSessionStore
	trust       domain.TrustStore
	routing     domain.RoutingSession
	policy      RotationPolicy
	logger      *slog.Logger
	now         func() time.Time

	id domain.Identity

	mu        sync.Mutex
	ready     bool
	roomLocks map[domain.RoomID]*sync.Mutex
}

// New builds the service. Init must be called before any crypto operation.
func New(cfg Config) *Service {
	policy := cfg.Policy
	if policy.MaxMessages == 0 && policy.MaxAge == 0 {
		policy = DefaultRotationPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		passphrase:  cfg.Passphrase,
		identitySvc: cfg.Identity,
		prekeys:     cfg.PreKeys,
		channels:    cfg.Channels,
		sessions:    cfg.Sessions,
		trust:       cfg.Trust,
		routing:     cfg.Routing,
		policy:      policy,
		logger:      logger,
		now:         now,
		roomLocks:   map[domain.RoomID]*sync.Mutex{},
	}
}

// Init loads or generates the device identity, tops up the pre-key
// supply, and publishes device keys to the routing server. It must
// succeed before EncryptRoomEvent or DecryptRoomEvent may be used.
func (s *Service) Init(ctx context.Context) error {
	id, err := s.identitySvc.LoadOrGenerateIdentity(s.passphrase)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	s.id = id

	spkID, spkPub, spkSig, err := s.ensureSignedPreKey()
	if err != nil {
		return fmt.Errorf("signed pre-key: %w", err)
	}
	oneTime, err := s.ensureOneTimePreKeys()
	if err != nil {
		return fmt.Errorf("one-time pre-keys: %w", err)
	}

	upload := domain.KeyUpload{
		DeviceKeys: domain.DeviceKeys{
			UserID:     s.routing.UserID(),
			DeviceID:   s.routing.DeviceID(),
			CurveKey:   id.XPub,
			SigningKey: id.EdPub,
			Signature:  crypto.SignEd25519(id.EdPriv, id.XPub.Slice()),
		},
		SignedPreKeyID:        spkID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: spkSig,
		OneTimePreKeys:        oneTime,
	}
	if err := s.routing.UploadKeys(ctx, upload); err != nil {
		return fmt.Errorf("upload keys: %w", err)
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()

	s.logger.Debug("crypto session manager initialised",
		"device", s.routing.DeviceID(), "one_time_prekeys", len(oneTime))
	return nil
}

// Ready reports whether Init completed. When false the engine runs in
// degraded plaintext mode.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// SenderKey returns this device's identity curve key.
func (s *Service) SenderKey() domain.X25519Public { return s.id.XPub }

// DeviceFingerprint returns the short fingerprint of this device's
// identity key.
func (s *Service) DeviceFingerprint() string {
	return crypto.Fingerprint(s.id.XPub.Slice())
}

// ensureSignedPreKey returns the current signed pre-key, creating and
// signing one on first use.
func (s *Service) ensureSignedPreKey() (domain.PreKeyID, domain.X25519Public, []byte, error) {
	if id, ok, err := s.prekeys.CurrentSignedPreKeyID(); err != nil {
		return "", domain.X25519Public{}, nil, err
	} else if ok {
		_, pub, sig, found, err := s.prekeys.LoadSignedPreKey(id)
		if err != nil {
			return "", domain.X25519Public{}, nil, err
		}
		if found {
			return id, pub, sig, nil
		}
	}

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return "", domain.X25519Public{}, nil, err
	}
	sig := crypto.SignEd25519(s.id.EdPriv, pub.Slice())
	id := domain.PreKeyID("spk-" + uuid.NewString())

	if err := s.prekeys.SaveSignedPreKey(id, priv, pub, sig); err != nil {
		return "", domain.X25519Public{}, nil, err
	}
	if err := s.prekeys.SetCurrentSignedPreKeyID(id); err != nil {
		return "", domain.X25519Public{}, nil, err
	}
	return id, pub, sig, nil
}

// ensureOneTimePreKeys tops the local pool up to a full batch and
// returns the publics of the whole pool for publication.
func (s *Service) ensureOneTimePreKeys() ([]domain.OneTimePreKeyPublic, error) {
	existing, err := s.prekeys.ListOneTimePreKeyPublics()
	if err != nil {
		return nil, err
	}
	if missing := oneTimePreKeyBatch - len(existing); missing > 0 {
		fresh := make([]domain.OneTimePreKeyPair, 0, missing)
		for i := 0; i < missing; i++ {
			priv, pub, err := crypto.GenerateX25519()
			if err != nil {
				return nil, err
			}
			fresh = append(fresh, domain.OneTimePreKeyPair{
				ID:   domain.PreKeyID("opk-" + uuid.NewString()),
				Priv: priv,
				Pub:  pub,
			})
		}
		if err := s.prekeys.SaveOneTimePreKeys(fresh); err != nil {
			return nil, err
		}
	}
	return s.prekeys.ListOneTimePreKeyPublics()
}

// roomLock returns the per-room mutex, creating it on first use. All
// outbound session mutation for a room happens under its lock.
func (s *Service) roomLock(room domain.RoomID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.roomLocks[room]
	if !ok {
		l = &sync.Mutex{}
		s.roomLocks[room] = l
	}
	return l
}

func deviceKey(user domain.UserID, device domain.DeviceID) string {
	return string(user) + "|" + string(device)
}
