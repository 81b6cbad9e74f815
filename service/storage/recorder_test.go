package storage

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/transcript"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/specialerror"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRecorder(t *testing.T, conf RecorderConf, user string) (*Recorder, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	r := NewRecorder(rdb, conf, func() string { return user })
	t.Cleanup(r.Close)
	return r, mr
}

func flush(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestNewRedisDisabledWithoutAddr(t *testing.T) {
	rdb, err := NewRedis(context.Background(), Config{})
	if rdb != nil || err != nil {
		t.Fatalf("got %v %v", rdb, err)
	}
}

func TestNewRedisPing(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedis(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	_ = rdb.Close()

	mr.Close()
	if _, err := NewRedis(context.Background(), Config{Addr: mr.Addr()}); err == nil {
		t.Fatalf("expected error for a dead server")
	}
}

func TestRecordsSession(t *testing.T) {
	r, mr := newTestRecorder(t, RecorderConf{}, "student-1")
	ctx := context.Background()

	r.OnSession(42, true)
	flush(t, r)
	id, ok, err := r.LastSession(ctx, "student-1")
	if err != nil || !ok || id != 42 {
		t.Fatalf("session = %d %v %v", id, ok, err)
	}
	if ttl := mr.TTL("tuknavi:chat:session:student-1"); ttl <= 0 {
		t.Fatalf("session key has no ttl")
	}

	r.OnSession(0, false)
	flush(t, r)
	if _, ok, _ := r.LastSession(ctx, "student-1"); ok {
		t.Fatalf("session survived clear")
	}
}

func TestMirrorsTranscriptCapped(t *testing.T) {
	r, _ := newTestRecorder(t, RecorderConf{TranscriptMax: 2}, "")
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, c := range []string{"one", "two", "three"} {
		r.OnTranscript(transcript.Event{Message: model.NewMessage(model.SenderAssistant, c, at)})
	}
	flush(t, r)

	msgs, err := r.Transcript(context.Background(), "anonymous")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "two" || msgs[1].Content != "three" {
		t.Fatalf("mirror = %+v", msgs)
	}
	if msgs[0].Timestamp == nil || !msgs[0].Timestamp.Equal(at) {
		t.Fatalf("timestamp lost: %v", msgs[0].Timestamp)
	}

	r.OnTranscript(transcript.Event{Cleared: true})
	flush(t, r)
	if msgs, _ := r.Transcript(context.Background(), "anonymous"); len(msgs) != 0 {
		t.Fatalf("mirror survived clear: %+v", msgs)
	}
}

func TestClosedRecorderIgnoresHooks(t *testing.T) {
	r, _ := newTestRecorder(t, RecorderConf{}, "u")
	r.Close()
	r.OnSession(1, true)
	if err := r.Flush(context.Background()); err == nil {
		t.Fatalf("flush after close should fail")
	}
}

func TestClearTargetsOwnerOfRecordedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var who atomic.Value
	who.Store("alice")
	r := NewRecorder(rdb, RecorderConf{}, func() string { return who.Load().(string) })
	t.Cleanup(r.Close)

	// someone else's archive under the fallback name
	_ = mr.Set("tuknavi:chat:session:anonymous", "7")
	_, _ = mr.Push("tuknavi:chat:transcript:anonymous", `{"sender":"user","content":"mine"}`)

	r.OnSession(42, true)
	r.OnTranscript(transcript.Event{Message: model.NewMessage(model.SenderUser, "hi", time.Now())})
	flush(t, r)

	who.Store("") // signed out before the clears arrive
	r.OnTranscript(transcript.Event{Cleared: true})
	r.OnSession(0, false)
	flush(t, r)

	if mr.Exists("tuknavi:chat:transcript:alice") || mr.Exists("tuknavi:chat:session:alice") {
		t.Fatalf("alice keys survived logout: %v", mr.Keys())
	}
	if !mr.Exists("tuknavi:chat:transcript:anonymous") || !mr.Exists("tuknavi:chat:session:anonymous") {
		t.Fatalf("anonymous keys wiped by alice's logout: %v", mr.Keys())
	}

	// a clear with nothing written since leaves stored keys alone
	who.Store("bob")
	_, _ = mr.Push("tuknavi:chat:transcript:bob", `{"sender":"user","content":"x"}`)
	r.OnTranscript(transcript.Event{Cleared: true})
	flush(t, r)
	if !mr.Exists("tuknavi:chat:transcript:bob") {
		t.Fatalf("bob transcript wiped without being written")
	}
}

func TestReadErrorsAreCoded(t *testing.T) {
	r, mr := newTestRecorder(t, RecorderConf{}, "u")
	mr.Close()

	_, err := r.Transcript(context.Background(), "u")
	if err == nil {
		t.Fatalf("read from a dead server succeeded")
	}
	ce := specialerror.ErrCode(err)
	if ce.Code != errs.StorageUnavailable || specialerror.HTTPStatus(ce) != http.StatusServiceUnavailable {
		t.Fatalf("coded = %+v", ce)
	}

	if ce := specialerror.ErrCode(errs.WrapMsg(redis.Nil, "get")); ce.Code != errs.ArgsError {
		t.Fatalf("redis.Nil coded = %+v", ce)
	}
}
