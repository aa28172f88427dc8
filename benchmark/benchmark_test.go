package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"tickle-go/internal/browser/browsertest"
	"tickle-go/internal/models"
	"tickle-go/internal/monitor"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
)

// memStats holds memory statistics
type memStats struct {
	HeapAlloc  uint64
	TotalAlloc uint64
	Mallocs    uint64
	NumGC      uint32
}

func getMemStats() memStats {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return memStats{
		HeapAlloc:  stats.HeapAlloc,
		TotalAlloc: stats.TotalAlloc,
		Mallocs:    stats.Mallocs,
		NumGC:      stats.NumGC,
	}
}

func logMemStats(b *testing.B, before, after memStats) {
	b.Logf("  Heap Alloc: %s -> %s", units.HumanSize(float64(before.HeapAlloc)), units.HumanSize(float64(after.HeapAlloc)))
	b.Logf("  Total Alloc: +%s", units.HumanSize(float64(after.TotalAlloc-before.TotalAlloc)))
	b.Logf("  Mallocs: +%d", after.Mallocs-before.Mallocs)
	b.Logf("  GC Runs: +%d", after.NumGC-before.NumGC)
}

// createTestSites serves count sites on driver; every other one is asleep
// and needs a wake-up click.
func createTestSites(b *testing.B, driver *browsertest.Driver, count int) []models.Site {
	sites := make([]models.Site, count)
	for i := 0; i < count; i++ {
		url := fmt.Sprintf("https://app-%d.streamlit.app", i)
		script := &browsertest.Site{Frame: &browsertest.Frame{HTML: "Dashboard ready"}}
		if i%2 == 1 {
			script = &browsertest.Site{
				Controls:   []string{monitor.WakeControlSelectors[0]},
				AwakeFrame: &browsertest.Frame{HTML: "Dashboard ready"},
			}
		}
		driver.Serve(url, script)

		site, err := models.NewSite(models.SiteSpec{
			Name:        fmt.Sprintf("app-%d", i),
			URL:         url,
			IsStreamlit: true,
			MustContain: "Dashboard ready",
		})
		if err != nil {
			b.Fatalf("Failed to create site: %v", err)
		}
		sites[i] = site
	}
	return sites
}

// benchmarkCheckAll measures one batch run over siteCount sites
func benchmarkCheckAll(b *testing.B, siteCount int) {
	driver := browsertest.NewDriver()
	sites := createTestSites(b, driver, siteCount)

	siteMonitor, err := monitor.NewSiteMonitor(driver, monitor.Options{}, zerolog.Nop())
	if err != nil {
		b.Fatalf("Failed to create monitor: %v", err)
	}

	beforeStats := getMemStats()
	startTime := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results := siteMonitor.CheckAll(context.Background(), sites)
		for _, r := range results {
			if r.Status != models.StatusUp {
				b.Fatalf("%s: expected up, got %s (%s)", r.Name, r.Status, r.Detail)
			}
		}
	}
	b.StopTimer()

	afterStats := getMemStats()
	elapsedTime := time.Since(startTime)

	b.Logf("Benchmark for %d sites, %d runs:", siteCount, b.N)
	b.Logf("Average time per site check: %v", elapsedTime/time.Duration(siteCount*b.N))
	logMemStats(b, beforeStats, afterStats)
}

func BenchmarkCheckAll1Site(b *testing.B) {
	benchmarkCheckAll(b, 1)
}

func BenchmarkCheckAll10Sites(b *testing.B) {
	benchmarkCheckAll(b, 10)
}

func BenchmarkCheckAll100Sites(b *testing.B) {
	benchmarkCheckAll(b, 100)
}
