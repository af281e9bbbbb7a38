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

	"github.com/alicebob/miniredis/v2"
	factorgate "github.com/factorgate/factorgate"
	"github.com/redis/go-redis/v9"
)

type enrolledIdentity struct {
	identity factorgate.Identity
	seed     int
}

func main() {
	var (
		identities  = flag.Int("identities", 10000, "number of identities to enroll")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (verify + summary)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "fg", "store key prefix")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, and ops must be > 0")
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

	engine, err := factorgate.NewBuilder().
		WithDurableStore(factorgate.NewRedisDurableStore(client, *prefix)).
		WithCacheStore(factorgate.NewRedisCacheStore(client, *prefix, time.Hour)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	enrolled := make([]enrolledIdentity, *identities)
	fmt.Printf("enrolling %d identities...\n", *identities)
	startSeed := time.Now()
	for i := 0; i < *identities; i++ {
		result, err := engine.Enroll(ctx, []factorgate.FactorDigest{
			{Type: factorgate.FactorPIN, Digest: digestFor(i, 1)},
			{Type: factorgate.FactorDeviceKey, Digest: digestFor(i, 2)},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "enroll failed: %v\n", err)
			os.Exit(1)
		}
		enrolled[i] = enrolledIdentity{identity: result.Identity, seed: i}
	}
	fmt.Printf("enrolled in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runVerifyPhase(ctx, engine, enrolled, *ops, *concurrency)
	summaryStats := runSummaryPhase(ctx, engine, enrolled, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("summary", summaryStats)

	snapshot := engine.MetricsSnapshot()
	fmt.Printf("engine: sessions=%d verified=%d rate_limited=%d\n",
		snapshot.Counters[factorgate.MetricSessionCreated],
		snapshot.Counters[factorgate.MetricVerifySuccess],
		snapshot.Counters[factorgate.MetricSessionRateLimited],
	)
}

// runVerifyPhase drives full verification rounds: open a session, submit
// both enrolled factors, count the round as one op. The latency sample is
// the whole round, not a single call.
func runVerifyPhase(ctx context.Context, engine *factorgate.Engine, enrolled []enrolledIdentity, ops, concurrency int) phaseStats {
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
				target := enrolled[r.Intn(len(enrolled))]

				t0 := time.Now()
				err := verifyRound(ctx, engine, target)
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

func verifyRound(ctx context.Context, engine *factorgate.Engine, target enrolledIdentity) error {
	info, err := engine.CreateSession(ctx, target.identity, "loadtest", 100, nil)
	if err != nil {
		return err
	}
	// Digests are wiped after comparison, so every round submits fresh copies.
	if _, err := engine.SubmitFactor(ctx, info.ID, factorgate.FactorPIN, digestFor(target.seed, 1)); err != nil {
		return err
	}
	res, err := engine.SubmitFactor(ctx, info.ID, factorgate.FactorDeviceKey, digestFor(target.seed, 2))
	if err != nil {
		return err
	}
	if !res.Verified {
		return fmt.Errorf("round ended in state %v without verification", res.State)
	}
	return nil
}

func runSummaryPhase(ctx context.Context, engine *factorgate.Engine, enrolled []enrolledIdentity, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				target := enrolled[r.Intn(len(enrolled))]

				t0 := time.Now()
				_, err := engine.GetEnrollmentSummary(ctx, target.identity)
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

// digestFor derives a deterministic 32-byte digest for an identity and
// factor salt. The byte pattern varies across positions, so it always
// passes the degenerate-digest checks.
func digestFor(i, salt int) []byte {
	out := make([]byte, 32)
	for j := range out {
		out[j] = byte((i*31 + j*17 + salt*97 + 11) % 251)
	}
	return out
}
