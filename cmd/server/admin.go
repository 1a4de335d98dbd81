package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"pkworld.ai/internal/sim/scheduler"
	"pkworld.ai/internal/sim/world"
)

// adminWorld is what the admin endpoints need from the world loop.
type adminWorld interface {
	Kill() chan<- world.KillRequest
	Attack() chan<- world.AttackRequest
}

type adminAPI struct {
	world adminWorld
	token string
}

// killHandler serves POST /v1/kill?victim=&killer= and starts a death sequence.
func (a adminAPI) killHandler() http.HandlerFunc {
	return a.guard(func(rw http.ResponseWriter, r *http.Request) {
		victim := strings.TrimSpace(r.URL.Query().Get("victim"))
		if victim == "" {
			writeAdminError(rw, http.StatusBadRequest, errors.New("missing victim"))
			return
		}
		resp := make(chan error, 1)
		req := world.KillRequest{VictimID: victim, KillerID: strings.TrimSpace(r.URL.Query().Get("killer")), Resp: resp}
		roundTrip(r.Context(), rw, a.world.Kill(), req, resp)
	})
}

// attackHandler serves POST /v1/attack?attacker=&target= and records the last attacker.
func (a adminAPI) attackHandler() http.HandlerFunc {
	return a.guard(func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		attacker, target := strings.TrimSpace(q.Get("attacker")), strings.TrimSpace(q.Get("target"))
		if attacker == "" || target == "" {
			writeAdminError(rw, http.StatusBadRequest, errors.New("missing attacker or target"))
			return
		}
		resp := make(chan error, 1)
		req := world.AttackRequest{AttackerID: attacker, TargetID: target, Resp: resp}
		roundTrip(r.Context(), rw, a.world.Attack(), req, resp)
	})
}

// roundTrip hands req to the world loop and waits for its reply; both legs give up when ctx ends.
func roundTrip[T any](ctx context.Context, rw http.ResponseWriter, ch chan<- T, req T, resp chan error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	select {
	case ch <- req:
	case <-ctx.Done():
		writeAdminError(rw, http.StatusServiceUnavailable, ctx.Err())
		return
	}
	select {
	case err := <-resp:
		if err != nil {
			writeAdminError(rw, statusFor(err), err)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	case <-ctx.Done():
		writeAdminError(rw, http.StatusServiceUnavailable, ctx.Err())
	}
}

func (a adminAPI) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) && (a.token == "" || r.Header.Get("Authorization") != "Bearer "+a.token) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, world.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrDuplicateTask):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeAdminError(rw http.ResponseWriter, status int, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
