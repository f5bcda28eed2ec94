package interfaces

import domaintypes "sotto/internal/domain/types"

// IdentityService creates, retrieves, and inspects the device identity.
type IdentityService interface {
	GenerateIdentity(passphrase string) (domaintypes.Identity, domaintypes.Fingerprint, error)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	LoadOrGenerateIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}
