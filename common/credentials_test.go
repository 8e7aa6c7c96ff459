package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	cm_vault "github.com/comcast/dnacflow/vault"
	"github.com/stretchr/testify/assert"
)

func Test_GetCredentials_Static(t *testing.T) {
	assert := assert.New(t)

	c := NewControllerCredentials(nil, nil, &Credential{User: "admin", Pass: "Cisco123"})
	cred, err := c.GetCredentials(context.Background(), "dnac-east")
	assert.NoError(err)
	assert.Equal("admin", cred.User)
	assert.Equal("Cisco123", cred.Pass)

	empty := NewControllerCredentials(nil, nil, nil)
	_, err = empty.GetCredentials(context.Background(), "dnac-east")
	assert.True(errors.Is(err, ErrInvalidCredential))
}

func Test_GetCredentials_VaultCached(t *testing.T) {
	assert := assert.New(t)
	var reads int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet && r.URL.Path == "/v1/secret/dnac/dnac-east" {
			atomic.AddInt32(&reads, 1)
			w.Write([]byte(`{"data":{"username":"svc-dnac","password":"rotated"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[]}`))
	}))
	defer srv.Close()

	t.Setenv("VAULT_TOKEN", "")
	v, err := cm_vault.NewVaultAppRoleClient(context.Background(), cm_vault.Parameters{Address: srv.URL})
	assert.NoError(err)

	profile := &cm_vault.SecretProperties{MountPath: "secret", Path: "dnac", UserField: "username", PasswordField: "password"}
	c := NewControllerCredentials(v, profile, nil)

	for i := 0; i < 3; i++ {
		cred, err := c.GetCredentials(context.Background(), "dnac-east")
		assert.NoError(err)
		assert.Equal("svc-dnac", cred.User)
	}
	assert.Equal(int32(1), atomic.LoadInt32(&reads))

	c.Invalidate("dnac-east")
	_, err = c.GetCredentials(context.Background(), "dnac-east")
	assert.NoError(err)
	assert.Equal(int32(2), atomic.LoadInt32(&reads))

	_, err = c.GetCredentials(context.Background(), "dnac-west")
	assert.Error(err)
}
