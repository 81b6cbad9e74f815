package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/global"
	"github.com/TUK-curriculum/frontend-tuk-navi/logger"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/auth"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/bridge"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/chat"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/history"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/natsx"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/storage"
	"go.uber.org/zap"
)

func main() {
	cfg, err := global.Load()
	if err != nil {
		logger.Log.Fatal("config", zap.Error(err))
	}
	global.ConfigAll(cfg)
	defer logger.Sync()
	log := logger.Named("main")

	authCtx := auth.NewContext([]byte(cfg.JWTSecret))
	authCtx.SetToken(cfg.AccessToken)
	if err := authCtx.Check(); err != nil {
		log.Warn("starting without a usable token", zap.Error(err))
	}

	mgr := chat.NewManager(cfg.ManagerConf(), authCtx, chat.NewWSDialer(cfg.DialerConf()))
	authCtx.OnChange(func(bool) { mgr.AuthChanged() })

	loader := history.NewLoader(cfg.HistoryConf(), authCtx, mgr)
	mgr.SubscribeSession(loader.OnSession)

	var (
		bridgeOpts []bridge.Option
		// detached before shutdown so the final teardown does not wipe the archive
		unrecord []func()
	)
	rdb, err := storage.NewRedis(context.Background(), cfg.RedisConf())
	if err != nil {
		log.Warn("redis unavailable, recording off", zap.Error(err))
	}
	if rdb != nil {
		rec := storage.NewRecorder(rdb, storage.RecorderConf{Logger: logger.Named("recorder")}, authCtx.Subject)
		unrecord = append(unrecord,
			mgr.SubscribeSession(rec.OnSession),
			mgr.SubscribeTranscript(rec.OnTranscript))
		bridgeOpts = append(bridgeOpts, bridge.WithArchive(rec, authCtx.Subject))
		defer func() {
			rec.Close()
			_ = rdb.Close()
		}()
	}

	nc, err := natsx.Connect(cfg.NATSConf())
	if err != nil {
		log.Warn("nats unavailable, fan-out off", zap.Error(err))
	}
	if nc != nil {
		pub := natsx.NewPublisher(nc, cfg.NATSSubject, logger.Named("nats"))
		mgr.SubscribeState(pub.OnState)
		mgr.SubscribeSession(pub.OnSession)
		mgr.SubscribeTranscript(pub.OnTranscript)

		cmds := natsx.NewCommands(mgr, cfg.NATSSubject, logger.Named("nats"),
			natsx.IdemMiddleware(natsx.NewMemIdem(time.Minute), 0))
		if err := cmds.Start(nc); err != nil {
			log.Warn("remote commands off", zap.Error(err))
		}
		defer func() {
			cmds.Stop()
			_ = nc.Drain()
		}()
	}

	srv := bridge.NewServer(cfg.BridgeConf(), mgr, bridgeOpts...)
	if err := srv.Start(); err != nil {
		log.Error("bridge", zap.Error(err))
	}

	mgr.Connect()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	for _, fn := range unrecord {
		fn()
	}
	mgr.Close()
}
