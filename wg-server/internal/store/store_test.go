package store

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"wg-lifecycle/wg-server/internal/model"
)

func genKeys(t *testing.T) (string, string) {
	t.Helper()
	priv, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	return priv.String(), priv.PublicKey().String()
}

func keyGen(t *testing.T) model.KeyGenerator {
	return func() (string, string, error) {
		priv, pub := genKeys(t)
		return priv, pub, nil
	}
}

func testServer(t *testing.T) model.Server {
	s, err := Default("wg0", keyGen(t))
	require.NoError(t, err)
	return s
}

func testClient(t *testing.T, id string) model.Client {
	priv, pub := genKeys(t)
	return model.Client{
		UUID:                 id,
		PrivateKey:           priv,
		PublicKey:            pub,
		Login:                "user-" + id,
		FullName:             "User " + id,
		IP:                   "10.0.30.2",
		AccountStatus:        true,
		AdministrativeStatus: true,
		ConnectionStatus:     false,
		CreationDate:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ReleaseDate:          model.MinTime,
		ExpirationDate:       model.MaxTime,
		AllowedIPs:           "10.0.30.2/32",
		DNS:                  "1.1.1.1",
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	server := testServer(t)

	scheduled := testClient(t, "b")
	scheduled.ReleaseDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	scheduled.ExpirationDate = time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)
	scheduled.DNS = ""
	clients := []model.Client{testClient(t, "a"), scheduled}

	require.NoError(t, st.Save(server, clients))

	gotServer, gotClients, err := st.Load("wg0")
	require.NoError(t, err)
	assert.Equal(t, server, gotServer)
	assert.Equal(t, clients, gotClients)
}

func TestSaveWritesSentinelDatesAsNull(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Save(testServer(t), []model.Client{testClient(t, "a")}))

	data, err := os.ReadFile(st.Path("wg0"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"release_date": null`)
	assert.Contains(t, string(data), `"expiration_date": null`)
	assert.Contains(t, string(data), `"creation_date": "2026-01-02T03:04:05Z"`)
}

func TestSaveEmptyClients(t *testing.T) {
	st := New(t.TempDir())
	server := testServer(t)
	require.NoError(t, st.Save(server, nil))

	_, clients, err := st.Load("wg0")
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestSaveFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := dir + "/file"
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	st := New(blocker)
	err := st.Save(testServer(t), nil)
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
}

func TestLoadMissingFile(t *testing.T) {
	st := New(t.TempDir())
	_, _, err := st.Load("wg0")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func encodeDoc(t *testing.T, server model.Server, clients []model.Client) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, Encode(&sb, server, clients))
	return sb.String()
}

func TestDecodeErrors(t *testing.T) {
	server := testServer(t)
	client := testClient(t, "a")
	doc := encodeDoc(t, server, []model.Client{client})

	tests := []struct {
		name    string
		mutate  func(string) string
		section string
		field   string
		msg     string
	}{
		{
			name:    "listen_port as string",
			mutate:  func(s string) string { return strings.Replace(s, `"listen_port": 55255`, `"listen_port": "55255"`, 1) },
			section: "server",
			field:   "listen_port",
			msg:     "must be unsigned integer type",
		},
		{
			name:    "listen_port out of range",
			mutate:  func(s string) string { return strings.Replace(s, `"listen_port": 55255`, `"listen_port": 70000`, 1) },
			section: "server",
			field:   "listen_port",
			msg:     "must be 1-65535",
		},
		{
			name:    "missing login",
			mutate:  func(s string) string { return strings.Replace(s, `"login": "user-a",`, ``, 1) },
			section: "clients[0]",
			field:   "login",
			msg:     "is missing",
		},
		{
			name:    "null account status",
			mutate:  func(s string) string { return strings.Replace(s, `"account_status": true`, `"account_status": null`, 1) },
			section: "clients[0]",
			field:   "account_status",
			msg:     "must be boolean type",
		},
		{
			name:    "release date wrong type",
			mutate:  func(s string) string { return strings.Replace(s, `"release_date": null`, `"release_date": 5`, 1) },
			section: "clients[0]",
			field:   "release_date",
			msg:     "must be date string or null type",
		},
		{
			name:    "bad date layout",
			mutate:  func(s string) string { return strings.Replace(s, `"2026-01-02T03:04:05Z"`, `"2026-01-02 03:04:05"`, 1) },
			section: "clients[0]",
			field:   "creation_date",
			msg:     "must be a date in 2006-01-02T15:04:05Z format",
		},
		{
			name:    "fractional seconds",
			mutate:  func(s string) string { return strings.Replace(s, `"2026-01-02T03:04:05Z"`, `"2026-01-02T03:04:05.123456Z"`, 1) },
			section: "clients[0]",
			field:   "creation_date",
			msg:     "must be a date in 2006-01-02T15:04:05Z format",
		},
		{
			name:    "bad allowed ips",
			mutate:  func(s string) string { return strings.Replace(s, `"10.0.30.2/32"`, `"10.0.30.2"`, 1) },
			section: "clients[0]",
			field:   "allowed_ips",
			msg:     "must be a comma-separated list of CIDRs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := tt.mutate(doc)
			require.NotEqual(t, doc, mutated)

			_, _, err := Decode(strings.NewReader(mutated))
			require.Error(t, err)

			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.section, verr.Section)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.msg, verr.Msg)
		})
	}
}

func TestDecodeMissingEachField(t *testing.T) {
	doc := encodeDoc(t, testServer(t), []model.Client{testClient(t, "a")})

	check := func(t *testing.T, drop func(map[string]any), section, field string) {
		var raw map[string]any
		require.NoError(t, json.Unmarshal([]byte(doc), &raw))
		drop(raw)
		data, err := json.Marshal(raw)
		require.NoError(t, err)

		_, _, err = Decode(bytes.NewReader(data))

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, section, verr.Section)
		assert.Equal(t, field, verr.Field)
		assert.Equal(t, "is missing", verr.Msg)
	}

	for _, f := range serverFields {
		t.Run("server/"+f.name, func(t *testing.T) {
			check(t, func(raw map[string]any) {
				delete(raw["server"].(map[string]any), f.name)
			}, "server", f.name)
		})
	}
	for _, f := range clientFields {
		t.Run("client/"+f.name, func(t *testing.T) {
			check(t, func(raw map[string]any) {
				delete(raw["clients"].([]any)[0].(map[string]any), f.name)
			}, "clients[0]", f.name)
		})
	}
}

func TestDecodeBothEndpointsNull(t *testing.T) {
	server := testServer(t)
	require.Empty(t, server.EndpointDNS)
	doc := encodeDoc(t, server, nil)
	mutated := strings.Replace(doc, `"endpoint_ip": "127.0.0.1"`, `"endpoint_ip": null`, 1)
	require.NotEqual(t, doc, mutated)

	_, _, err := Decode(strings.NewReader(mutated))

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "server", verr.Section)
	assert.Contains(t, verr.Msg, "endpoint_dns")
	assert.Contains(t, verr.Msg, "endpoint_ip")
}

func TestDecodeMissingSection(t *testing.T) {
	_, _, err := Decode(strings.NewReader(`{"server": {}}`))

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "clients", verr.Section)
	assert.Equal(t, "is missing", verr.Msg)
}

func TestDecodeDuplicatePublicKey(t *testing.T) {
	a := testClient(t, "a")
	b := testClient(t, "b")
	b.PublicKey = a.PublicKey
	doc := encodeDoc(t, testServer(t), []model.Client{a, b})

	_, _, err := Decode(strings.NewReader(doc))

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "clients[1]", verr.Section)
	assert.Equal(t, "public_key", verr.Field)
}

func TestLoadInterfaceMismatch(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	require.NoError(t, st.Save(testServer(t), nil))
	require.NoError(t, os.Rename(st.Path("wg0"), st.Path("wg1")))

	_, _, err := st.Load("wg1")
	assert.True(t, model.IsValidation(err))
}

func TestLoadOrInit(t *testing.T) {
	st := New(t.TempDir())

	server, clients, created, err := st.LoadOrInit("wg0", keyGen(t))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, clients)
	assert.Equal(t, "wg0", server.InterfaceName)
	assert.Equal(t, uint16(DefaultListenPort), server.ListenPort)
	assert.Equal(t, DefaultIP, server.IP)
	assert.Equal(t, DefaultEndpointIP, server.EndpointIP)
	assert.Equal(t, "echo Wireguard PreUp", server.PreUp)

	again, _, created, err := st.LoadOrInit("wg0", keyGen(t))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, server, again)
}

func TestLoadOrInitKeepsInvalidDocument(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, os.WriteFile(st.Path("wg0"), []byte(`{"server": 1}`), 0o600))

	_, _, _, err := st.LoadOrInit("wg0", keyGen(t))
	require.Error(t, err)

	data, readErr := os.ReadFile(st.Path("wg0"))
	require.NoError(t, readErr)
	assert.Equal(t, `{"server": 1}`, string(data))
}
