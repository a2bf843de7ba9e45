// Command consumer 运行一个去重/重试语义的 AMQP 消费者：从队列拉取
// 投递，决定该不该运行业务 handler，把结果记在去重存储里，并通过
// /metrics 暴露 Prometheus 指标.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kagerou7/dedupq/broker"
	"github.com/kagerou7/dedupq/cache"
	"github.com/kagerou7/dedupq/config"
	"github.com/kagerou7/dedupq/dedupstore"
	"github.com/kagerou7/dedupq/envelope"
	"github.com/kagerou7/dedupq/handler"
	"github.com/kagerou7/dedupq/logger"
	"github.com/kagerou7/dedupq/message"
	"github.com/kagerou7/dedupq/metrics"
	"github.com/kagerou7/dedupq/process"
	"github.com/kagerou7/dedupq/scheduler"
	"github.com/kagerou7/dedupq/semaphore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load[Config](*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	c, err := cache.New(&cfg.Cache, log)
	if err != nil {
		log.Fatalf("初始化缓存失败: %v", err)
	}
	defer c.Close()

	store := dedupstore.New(c, cfg.Queue,
		dedupstore.WithLogger(log),
		dedupstore.WithSampleRate(cfg.GC.SampleRate),
	)

	collector, err := metrics.NewMetrics(&cfg.Metrics)
	if err != nil {
		log.Fatalf("初始化指标收集器失败: %v", err)
	}

	consumer, err := broker.NewConsumer(&cfg.Broker, log)
	if err != nil {
		log.Fatalf("初始化 broker 消费者失败: %v", err)
	}
	defer consumer.Close()

	sched := scheduler.MustNew(
		scheduler.WithLogger(log),
		scheduler.WithCache(c),
	)
	if err := sched.Add(store.GarbageCollectJob("dedupstore-gc", cfg.GC.Schedule, cfg.GC.Retention, cfg.GC.Distributed)); err != nil {
		log.Fatalf("注册垃圾回收任务失败: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("启动调度器失败: %v", err)
	}
	defer sched.Stop()

	pctx := &process.Context{
		Store:   store,
		Logger:  log,
		Metrics: collector,
	}

	sem := semaphore.NewLocal(cfg.Concurrency)
	h := newOrderHandler(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{Addr: cfg.MetricsAddr}
	http.Handle(collector.GetPath(), collector.GetHandler())
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics 服务器退出: %v", err)
		}
	}()

	go func() {
		err := consumer.Consume(ctx, cfg.Queue, func(ctx context.Context, d broker.Delivery) {
			if err := sem.Acquire(ctx); err != nil {
				return
			}
			go func() {
				defer sem.Release(ctx)
				handleDelivery(ctx, pctx, store, d, cfg.Policy, h)
			}()
		})
		if err != nil && err != context.Canceled {
			log.Errorf("消费循环退出: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("收到退出信号，开始优雅关闭")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = sched.Shutdown(shutdownCtx)
}

func handleDelivery(ctx context.Context, pctx *process.Context, store *dedupstore.Client, d broker.Delivery, defaultPolicy message.Policy, h handler.Handler) {
	env, decodeErr := envelope.Decode(d)

	policy := defaultPolicy
	policy.Normalize()

	state := &message.State{
		Envelope:  env,
		Policy:    policy,
		Payload:   d.Body(),
		Delivery:  d,
		DecodeErr: decodeErr,
	}

	code := process.Process(ctx, pctx, state, h)
	if code.Reject() {
		pctx.Logger.Debugf("[consumer] 消息 %s 要求重投: %s", env.MessageID, code)
	}
}
