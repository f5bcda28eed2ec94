package roomkeys

import (
	"context"
	"fmt"

	"sotto/internal/crypto"
	"sotto/internal/domain"
)

// RemoteFingerprint fetches a device's published keys and returns the
// fingerprint of its identity key, for out-of-band comparison.
func (s *Service) RemoteFingerprint(ctx context.Context, user domain.UserID, device domain.DeviceID) (string, error) {
	keys, err := s.lookupDevice(ctx, user, device)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(keys.CurveKey.Slice()), nil
}

// VerifyDevice marks a device as trusted after the user has compared
// fingerprints out of band. Verifying an already-verified device is a
// no-op; verification is never revoked here.
func (s *Service) VerifyDevice(ctx context.Context, user domain.UserID, device domain.DeviceID) error {
	if rec, ok, err := s.trust.LoadTrust(user, device); err != nil {
		return err
	} else if ok && rec.Trusted {
		return nil
	}

	// Confirm the device still exists before recording trust.
	if _, err := s.lookupDevice(ctx, user, device); err != nil {
		return err
	}

	return s.trust.SaveTrust(domain.TrustRecord{
		UserID:      user,
		DeviceID:    device,
		Trusted:     true,
		VerifiedUTC: s.now().UTC().Unix(),
	})
}

// IsVerified reports whether the device has been explicitly verified.
func (s *Service) IsVerified(user domain.UserID, device domain.DeviceID) (bool, error) {
	rec, ok, err := s.trust.LoadTrust(user, device)
	if err != nil {
		return false, err
	}
	return ok && rec.Trusted, nil
}

func (s *Service) lookupDevice(ctx context.Context, user domain.UserID, device domain.DeviceID) (domain.DeviceKeys, error) {
	deviceMap, err := s.routing.QueryDeviceKeys(ctx, []domain.UserID{user})
	if err != nil {
		return domain.DeviceKeys{}, err
	}
	for _, dev := range deviceMap[user] {
		if dev.DeviceID == device {
			if !crypto.VerifyEd25519(dev.SigningKey, dev.CurveKey.Slice(), dev.Signature) {
				return domain.DeviceKeys{}, fmt.Errorf("bad self-signature on device %s/%s", user, device)
			}
			return dev, nil
		}
	}
	return domain.DeviceKeys{}, fmt.Errorf("unknown device %s/%s", user, device)
}
