package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/transcript"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/safe"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RecorderConf struct {
	KeyPrefix     string        // default "tuknavi:chat"
	TranscriptMax int64         // entries kept per user
	TTL           time.Duration // expiry of both keys, renewed on write
	Buffer        int           // pending writes before new ones are dropped
	Logger        *zap.Logger
}

func (c *RecorderConf) norm() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "tuknavi:chat"
	}
	if c.TranscriptMax <= 0 {
		c.TranscriptMax = 500
	}
	if c.TTL <= 0 {
		c.TTL = 7 * 24 * time.Hour
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

type jobKind int

const (
	jobSession jobKind = iota
	jobSessionClear
	jobAppend
	jobClear
	jobFlush
)

type job struct {
	kind jobKind
	user string
	id   int64
	msg  model.Message
	done chan struct{}
}

// Recorder mirrors the chat state of the signed-in user into Redis: the last
// session id and a capped copy of the transcript. Writes happen on one
// worker goroutine in the order the hooks were called, so listeners fed from
// the manager goroutine never wait on the network.
type Recorder struct {
	rdb  *redis.Client
	conf RecorderConf
	user func() string
	log  *zap.Logger

	// owners of the keys this recorder last wrote. A clear deletes only
	// those: on logout the token is gone before the clear arrives, and keys
	// this process never wrote are left alone.
	omu             sync.Mutex
	sessionOwner    string
	transcriptOwner string

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	exited chan struct{}
}

// NewRecorder starts the worker. user names the owner of the keys; an empty
// name is recorded as "anonymous".
func NewRecorder(rdb *redis.Client, conf RecorderConf, user func() string) *Recorder {
	safe.MustNotNil(rdb, "rdb")
	conf.norm()
	if user == nil {
		user = func() string { return "" }
	}
	r := &Recorder{
		rdb:    rdb,
		conf:   conf,
		user:   user,
		log:    conf.Logger,
		jobs:   make(chan job, conf.Buffer),
		exited: make(chan struct{}),
	}
	go r.worker()
	return r
}

func (r *Recorder) sessionKey(user string) string {
	return r.conf.KeyPrefix + ":session:" + user
}

func (r *Recorder) transcriptKey(user string) string {
	return r.conf.KeyPrefix + ":transcript:" + user
}

func (r *Recorder) owner() string {
	if u := r.user(); u != "" {
		return u
	}
	return "anonymous"
}

// OnSession is a session.Listener.
func (r *Recorder) OnSession(id int64, ok bool) {
	r.omu.Lock()
	if ok {
		r.sessionOwner = r.owner()
		user := r.sessionOwner
		r.omu.Unlock()
		r.enqueue(job{kind: jobSession, user: user, id: id})
		return
	}
	user := r.sessionOwner
	r.sessionOwner = ""
	r.omu.Unlock()
	if user != "" {
		r.enqueue(job{kind: jobSessionClear, user: user})
	}
}

// OnTranscript is a transcript.Listener.
func (r *Recorder) OnTranscript(ev transcript.Event) {
	r.omu.Lock()
	if ev.Cleared {
		user := r.transcriptOwner
		r.transcriptOwner = ""
		r.omu.Unlock()
		if user != "" {
			r.enqueue(job{kind: jobClear, user: user})
		}
		return
	}
	r.transcriptOwner = r.owner()
	user := r.transcriptOwner
	r.omu.Unlock()
	r.enqueue(job{kind: jobAppend, user: user, msg: ev.Message})
}

func (r *Recorder) enqueue(j job) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.jobs <- j:
		return true
	default:
		r.log.Warn("recorder backlog full, write dropped", zap.Int("buffer", r.conf.Buffer))
		return false
	}
}

// Flush waits until every write queued before it has been applied.
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return errs.ErrManagerClosed.WrapMsg("recorder closed")
	}
	select {
	case r.jobs <- job{kind: jobFlush, done: done}:
	case <-ctx.Done():
		r.mu.RUnlock()
		return ctx.Err()
	}
	r.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes and stops the worker. The client is not closed.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.exited
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()
	<-r.exited
}

func (r *Recorder) worker() {
	defer close(r.exited)
	for j := range r.jobs {
		r.apply(j)
	}
}

func (r *Recorder) apply(j job) {
	defer safe.Recover("redis-recorder")
	if j.kind == jobFlush {
		close(j.done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var err error
	switch j.kind {
	case jobSession:
		err = r.rdb.Set(ctx, r.sessionKey(j.user), j.id, r.conf.TTL).Err()
	case jobSessionClear:
		err = r.rdb.Del(ctx, r.sessionKey(j.user)).Err()
	case jobClear:
		err = r.rdb.Del(ctx, r.transcriptKey(j.user)).Err()
	case jobAppend:
		b, _ := json.Marshal(j.msg)
		key := r.transcriptKey(j.user)
		pipe := r.rdb.TxPipeline()
		pipe.RPush(ctx, key, b)
		pipe.LTrim(ctx, key, -r.conf.TranscriptMax, -1)
		pipe.Expire(ctx, key, r.conf.TTL)
		_, err = pipe.Exec(ctx)
	}
	if err != nil {
		r.log.Warn("redis write failed", zap.String("user", j.user), zap.Error(err))
	}
}

// LastSession reads the recorded session id of user.
func (r *Recorder) LastSession(ctx context.Context, user string) (int64, bool, error) {
	val, err := r.rdb.Get(ctx, r.sessionKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.WrapMsg(err, "read session", "user", user)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, errs.ErrArgs.WrapMsg("stored session id is not a number", "value", val)
	}
	return id, true, nil
}

// Transcript reads the recorded transcript of user, oldest first.
func (r *Recorder) Transcript(ctx context.Context, user string) ([]model.Message, error) {
	vals, err := r.rdb.LRange(ctx, r.transcriptKey(user), 0, -1).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "read transcript", "user", user)
	}
	out := make([]model.Message, 0, len(vals))
	for _, v := range vals {
		var m model.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
