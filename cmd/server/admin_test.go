package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pkworld.ai/internal/sim/scheduler"
	"pkworld.ai/internal/sim/world"
)

type fakeAdminWorld struct {
	kill    chan world.KillRequest
	attack  chan world.AttackRequest
	killErr error
}

func newFakeAdminWorld(killErr error) *fakeAdminWorld {
	f := &fakeAdminWorld{
		kill:    make(chan world.KillRequest, 1),
		attack:  make(chan world.AttackRequest, 1),
		killErr: killErr,
	}
	go func() {
		for {
			select {
			case req := <-f.kill:
				req.Resp <- f.killErr
			case req := <-f.attack:
				req.Resp <- nil
			}
		}
	}()
	return f
}

func (f *fakeAdminWorld) Kill() chan<- world.KillRequest     { return f.kill }
func (f *fakeAdminWorld) Attack() chan<- world.AttackRequest { return f.attack }

func doAdmin(t *testing.T, h http.HandlerFunc, method, target, remote string) int {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec.Code
}

func TestAdminKill_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{world.ErrUnknownEntity, http.StatusNotFound},
		{fmt.Errorf("%w: death:p1", scheduler.ErrDuplicateTask), http.StatusConflict},
	}
	for _, tc := range cases {
		api := adminAPI{world: newFakeAdminWorld(tc.err)}
		if got := doAdmin(t, api.killHandler(), http.MethodPost, "/v1/kill?victim=p1&killer=p2", "127.0.0.1:5000"); got != tc.want {
			t.Fatalf("err=%v: status=%d want %d", tc.err, got, tc.want)
		}
	}
}

func TestAdminKill_RequiresVictimAndPost(t *testing.T) {
	api := adminAPI{world: newFakeAdminWorld(nil)}
	if got := doAdmin(t, api.killHandler(), http.MethodPost, "/v1/kill", "127.0.0.1:5000"); got != http.StatusBadRequest {
		t.Fatalf("missing victim: status=%d", got)
	}
	if got := doAdmin(t, api.killHandler(), http.MethodGet, "/v1/kill?victim=p1", "127.0.0.1:5000"); got != http.StatusMethodNotAllowed {
		t.Fatalf("GET: status=%d", got)
	}
}

func TestAdmin_RemoteNeedsToken(t *testing.T) {
	api := adminAPI{world: newFakeAdminWorld(nil), token: "s3cret"}
	h := api.attackHandler()
	if got := doAdmin(t, h, http.MethodPost, "/v1/attack?attacker=p2&target=p1", "10.0.0.5:5000"); got != http.StatusForbidden {
		t.Fatalf("remote without token: status=%d", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/attack?attacker=p2&target=p1", nil)
	req.RemoteAddr = "10.0.0.5:5000"
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("remote with token: status=%d body=%s", rec.Code, rec.Body.String())
	}

	open := adminAPI{world: newFakeAdminWorld(nil)}
	if got := doAdmin(t, open.attackHandler(), http.MethodPost, "/v1/attack?attacker=p2&target=p1", "10.0.0.5:5000"); got != http.StatusForbidden {
		t.Fatalf("remote with no configured token: status=%d", got)
	}
}

type stalledAdminWorld struct {
	kill   chan world.KillRequest
	attack chan world.AttackRequest
}

func (s stalledAdminWorld) Kill() chan<- world.KillRequest     { return s.kill }
func (s stalledAdminWorld) Attack() chan<- world.AttackRequest { return s.attack }

func TestAdminKill_StalledWorldReturnsUnavailable(t *testing.T) {
	api := adminAPI{world: stalledAdminWorld{kill: make(chan world.KillRequest), attack: make(chan world.AttackRequest)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/kill?victim=p1", nil).WithContext(ctx)
	req.RemoteAddr = "127.0.0.1:5000"
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		api.killHandler()(rec, req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler did not return while the world loop was not reading")
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:1234":     true,
		"10.1.2.3:1234":  false,
		"bogus":          false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}
