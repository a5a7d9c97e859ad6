package gateway

import (
	"slices"
	"strings"

	"github.com/mkmccarty/CoopBoard/src/config"
	"github.com/peterbourgon/diskv/v3"
)

const archiveExt = ".pb"

// Archive keeps the raw coop status payloads fetched from the remote so a
// coop can be replayed later. Keys are coop/<contract>/<coop>.
type Archive struct {
	store  *diskv.Diskv
	cipher *config.Cipher
}

// NewArchive opens an archive rooted at basePath. A nil cipher stores payloads as fetched.
func NewArchive(basePath string, cipher *config.Cipher) *Archive {
	return &Archive{
		store: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: archiveTransform,
			InverseTransform:  archiveInverseTransform,
			CacheSizeMax:      512 * 512,
		}),
		cipher: cipher,
	}
}

func archiveTransform(key string) *diskv.PathKey {
	path := strings.Split(key, "/")
	last := len(path) - 1
	return &diskv.PathKey{
		Path:     path[:last],
		FileName: path[last] + archiveExt,
	}
}

func archiveInverseTransform(pathKey *diskv.PathKey) string {
	name := strings.TrimSuffix(pathKey.FileName, archiveExt)
	return strings.Join(append(append([]string{}, pathKey.Path...), name), "/")
}

func archiveKey(contractID, coopID string) string {
	return "coop/" + contractID + "/" + coopID
}

// Save stores a payload for the coop, replacing any earlier one.
func (a *Archive) Save(contractID, coopID string, payload []byte) error {
	if a.cipher != nil {
		sealed, err := a.cipher.Seal(payload)
		if err != nil {
			return err
		}
		payload = sealed
	}
	return a.store.Write(archiveKey(contractID, coopID), payload)
}

// Load returns the archived payload for the coop.
func (a *Archive) Load(contractID, coopID string) ([]byte, error) {
	b, err := a.store.Read(archiveKey(contractID, coopID))
	if err != nil {
		return nil, err
	}
	if a.cipher != nil {
		return a.cipher.Open(b)
	}
	return b, nil
}

// Has reports whether a payload exists for the coop.
func (a *Archive) Has(contractID, coopID string) bool {
	return a.store.Has(archiveKey(contractID, coopID))
}

// Coops lists the archived coop codes of a contract.
func (a *Archive) Coops(contractID string) []string {
	prefix := archiveKey(contractID, "")
	var coops []string
	for key := range a.store.Keys(nil) {
		if strings.HasPrefix(key, prefix) {
			coops = append(coops, strings.TrimPrefix(key, prefix))
		}
	}
	slices.Sort(coops)
	return coops
}
