package keys

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// ManagerSuite covers key lifecycle, AEAD round-trips, and tamper detection.
type ManagerSuite struct {
	suite.Suite
	mgr *Manager
}

func (s *ManagerSuite) SetupTest() {
	mgr, err := NewManager()
	s.Require().NoError(err)
	s.mgr = mgr
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) TestGenesisKeyIsCurrent() {
	s.NotEmpty(s.mgr.CurrentKeyID())

	keys := s.mgr.Keys()
	s.Len(keys, 1)
	s.Equal(StatusActive, keys[0].Status)
	s.True(keys[0].Current)
	s.Equal(AlgorithmAESGCM, keys[0].Algorithm)
}

func (s *ManagerSuite) TestGenerateKeyDoesNotChangeCurrent() {
	current := s.mgr.CurrentKeyID()
	id, err := s.mgr.GenerateKey()
	s.Require().NoError(err)
	s.NotEqual(current, id)
	s.Equal(current, s.mgr.CurrentKeyID())
}

func (s *ManagerSuite) TestEncryptDecryptRoundTrip() {
	env, err := s.mgr.Encrypt([]byte("the eagle lands at dawn"))
	s.Require().NoError(err)
	s.Equal(s.mgr.CurrentKeyID(), env.KeyID)
	s.Len(env.IV, 12)
	s.Len(env.AuthTag, 16)

	plaintext, err := s.mgr.Decrypt(env)
	s.Require().NoError(err)
	s.Equal([]byte("the eagle lands at dawn"), plaintext)
}

func (s *ManagerSuite) TestFreshNoncePerCall() {
	a, err := s.mgr.Encrypt([]byte("same input"))
	s.Require().NoError(err)
	b, err := s.mgr.Encrypt([]byte("same input"))
	s.Require().NoError(err)
	s.NotEqual(a.IV, b.IV)
	s.NotEqual(a.Ciphertext, b.Ciphertext)
}

func (s *ManagerSuite) TestRotationKeepsOldKeyDecryptable() {
	env, err := s.mgr.Encrypt([]byte("pre-rotation secret"))
	s.Require().NoError(err)
	oldID := env.KeyID

	newID, err := s.mgr.Rotate()
	s.Require().NoError(err)
	s.NotEqual(oldID, newID)
	s.Equal(newID, s.mgr.CurrentKeyID())

	plaintext, err := s.mgr.Decrypt(env)
	s.Require().NoError(err)
	s.Equal([]byte("pre-rotation secret"), plaintext)

	for _, meta := range s.mgr.Keys() {
		if meta.ID == oldID {
			s.Equal(StatusRotating, meta.Status)
			s.NotNil(meta.RotatedAt)
		}
	}
}

func (s *ManagerSuite) TestTamperedCiphertextFailsAuthentication() {
	env, err := s.mgr.Encrypt([]byte("integrity matters"))
	s.Require().NoError(err)

	s.Run("flipped ciphertext bit", func() {
		bad := *env
		bad.Ciphertext = append([]byte{}, env.Ciphertext...)
		bad.Ciphertext[0] ^= 0x01
		_, err := s.mgr.Decrypt(&bad)
		s.ErrorIs(err, ErrAuthenticationFailed)
	})

	s.Run("flipped auth tag bit", func() {
		bad := *env
		bad.AuthTag = append([]byte{}, env.AuthTag...)
		bad.AuthTag[len(bad.AuthTag)-1] ^= 0x80
		_, err := s.mgr.Decrypt(&bad)
		s.ErrorIs(err, ErrAuthenticationFailed)
	})
}

func (s *ManagerSuite) TestDecryptUnknownKey() {
	env, err := s.mgr.Encrypt([]byte("x"))
	s.Require().NoError(err)
	env.KeyID = "00000000-0000-0000-0000-000000000000"
	_, err = s.mgr.Decrypt(env)
	s.ErrorIs(err, ErrKeyNotFound)
}

func (s *ManagerSuite) TestEncryptWithoutActiveKey() {
	s.Require().NoError(s.mgr.SecureDelete(s.mgr.CurrentKeyID()))
	_, err := s.mgr.Encrypt([]byte("x"))
	s.ErrorIs(err, ErrNoActiveKey)
}

func (s *ManagerSuite) TestSecureDeleteRemovesKey() {
	env, err := s.mgr.Encrypt([]byte("gone soon"))
	s.Require().NoError(err)

	s.Require().NoError(s.mgr.SecureDelete(env.KeyID))
	_, err = s.mgr.Decrypt(env)
	s.ErrorIs(err, ErrKeyNotFound)

	s.ErrorIs(s.mgr.SecureDelete(env.KeyID), ErrKeyNotFound)
}

func (s *ManagerSuite) TestExportImportRoundTrip() {
	env, err := s.mgr.Encrypt([]byte("escrowed"))
	s.Require().NoError(err)

	blob, err := s.mgr.Export(env.KeyID, "correct horse battery staple")
	s.Require().NoError(err)

	// A second manager imports the blob and can decrypt under the new ID.
	other, err := NewManager()
	s.Require().NoError(err)
	importedID, err := other.Import(blob, "correct horse battery staple")
	s.Require().NoError(err)

	env.KeyID = importedID
	plaintext, err := other.Decrypt(env)
	s.Require().NoError(err)
	s.Equal([]byte("escrowed"), plaintext)
}

func (s *ManagerSuite) TestImportWrongPassword() {
	blob, err := s.mgr.Export(s.mgr.CurrentKeyID(), "right")
	s.Require().NoError(err)

	_, err = s.mgr.Import(blob, "wrong")
	s.ErrorIs(err, ErrAuthenticationFailed)
}

func (s *ManagerSuite) TestExportRequiresPassword() {
	_, err := s.mgr.Export(s.mgr.CurrentKeyID(), "")
	s.Error(err)
}
