// Command gatekeep-loadtest measures session resolve, renew and rate-limit throughput
// against Redis or an in-process miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/gatekeep/ratelimit"
	"github.com/MrEthical07/gatekeep/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// op runs one operation for sample i using the worker's private rand source.
type op func(ctx context.Context, r *rand.Rand, i int) error

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		clients     = flag.Int("clients", 1000, "distinct client fingerprints for the rate-limit phase")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (resolve, renew, ratelimit)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gks", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *clients <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, clients, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	svc := session.NewService(session.NewRedisKV(client), session.Config{
		Prefix:    *prefix,
		OpTimeout: time.Second,
	})

	tokens := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range tokens {
		s, err := svc.Issue(ctx, session.Claims{
			SubjectID: fmt.Sprintf("user-%d", i),
			Role:      "user",
			AutoLogin: i%10 == 0,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = s.Token
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	limiter := ratelimit.New(ratelimit.NewRedisWindow(client, "grl-loadtest"), ratelimit.DefaultConfig())
	var rejected int64

	resolveStats := runPhase(ctx, *ops, *concurrency, func(ctx context.Context, r *rand.Rand, _ int) error {
		_, err := svc.Resolve(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	renewStats := runPhase(ctx, *ops, *concurrency, func(ctx context.Context, r *rand.Rand, _ int) error {
		return svc.Renew(ctx, tokens[r.Intn(len(tokens))], svc.TTLFor(false))
	})
	limitStats := runPhase(ctx, *ops, *concurrency, func(ctx context.Context, r *rand.Rand, _ int) error {
		n := r.Intn(*clients)
		d, err := limiter.Check(ctx, fmt.Sprintf("10.0.%d.%d", n/256, n%256), n%2 == 0)
		if err == nil && !d.Allowed {
			atomic.AddInt64(&rejected, 1)
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolveStats)
	printStats("renew", renewStats)
	printStats("ratelimit", limitStats)
	fmt.Printf("ratelimit: rejected=%d\n", atomic.LoadInt64(&rejected))
}

func runPhase(ctx context.Context, ops, concurrency int, fn op) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(ctx, r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
