package websocket

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpgraderOriginCheck(t *testing.T) {
	upgrader := NewUpgrader([]string{"https://app.example.com", "not a url"})

	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"HTTPS://APP.EXAMPLE.COM", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1", true},
		{"https://evil.example.com", false},
		{"garbage", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.want, upgrader.CheckOrigin(r), tc.origin)
	}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://anything.example.org")
	assert.True(t, NewUpgrader([]string{"*"}).CheckOrigin(r))
}
