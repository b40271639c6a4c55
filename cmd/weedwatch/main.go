package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/sauvie/weedwatch/internal/api"
	"github.com/sauvie/weedwatch/internal/ingest"
	"github.com/sauvie/weedwatch/internal/notify"
	"github.com/sauvie/weedwatch/internal/store"
	"github.com/sauvie/weedwatch/internal/trigger"
)

var cli struct {
	DB       string  `help:"Path to SQLite database." default:"data/weedwatch.db"`
	Port     string  `help:"HTTP server port." default:"8081"`
	Lat      float64 `help:"Site latitude." default:"45.662917"`
	Lon      float64 `help:"Site longitude." default:"-122.815922"`
	Timezone string  `help:"IANA timezone for the site." default:"America/Los_Angeles"`

	WebhookURL string `help:"Zapier webhook URL for SMS alerts." env:"ZAPIER_WEBHOOK_URL"`
	Phone      string `help:"Recipient phone number." env:"ALERT_PHONE_NUMBER"`

	Interval   time.Duration `help:"Polling interval in loop mode." default:"6h"`
	Once       bool          `help:"Run a single scan and exit."`
	Backfill   bool          `help:"Backfill archive history from Jan 1 and exit."`
	Status     bool          `help:"Print current degree-day status and exit."`
	TestAlerts bool          `help:"Send a test message through the webhook and exit."`
	NoPoll     bool          `help:"Disable polling (server only, for local dev)."`
}

func main() {
	godotenv.Load()
	kong.Parse(&cli,
		kong.Name("weedwatch"),
		kong.Description("Growing-degree-day weed emergence alert engine."))

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	loc, err := time.LoadLocation(cli.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", cli.Timezone, err)
		loc = time.UTC
	}

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	var notifier notify.Notifier
	if cli.WebhookURL != "" {
		notifier = notify.NewZapierClient(cli.WebhookURL, cli.Phone)
	} else {
		log.Println("no webhook configured, alerts will be logged only")
		notifier = notify.LogNotifier{}
	}

	meteo := ingest.NewOpenMeteo(cli.Lat, cli.Lon, cli.Timezone)
	runner := ingest.NewRunner(st, meteo, notifier, loc)
	runner.SetInterval(cli.Interval)
	server := api.NewServer(st, cli.Port, loc)

	if cli.TestAlerts {
		for _, rule := range trigger.Rules {
			msg := fmt.Sprintf("WEEDWATCH TEST [%s]: %s\n\nTarget Weeds:\n%s\n\nAction: %s",
				rule.ID, rule.Name, rule.Weeds, rule.Action)
			if err := notifier.Send(msg); err != nil {
				log.Fatalf("test alert %s: %v", rule.ID, err)
			}
			log.Printf("test alert sent: %s", rule.ID)
		}
		return
	}

	if cli.Status {
		if err := printStatus(st, loc); err != nil {
			log.Fatalf("status: %v", err)
		}
		return
	}

	if cli.Backfill {
		now := time.Now().In(loc)
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		end := now.AddDate(0, 0, -6)
		log.Printf("backfilling %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
		if err := runner.Backfill(start, end); err != nil {
			log.Fatalf("backfill: %v", err)
		}
		log.Println("done")
		return
	}

	if cli.Once {
		log.Println("running single scan")
		if err := runner.RunOnce(); err != nil {
			log.Fatalf("scan: %v", err)
		}
		log.Println("done")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cli.NoPoll {
		go runner.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	log.Printf("starting server on :%s", cli.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func printStatus(st *store.Store, loc *time.Location) error {
	latest, err := st.GetLatestRecord()
	if err != nil {
		return err
	}
	if latest == nil {
		fmt.Println("no weather records stored yet")
		return nil
	}

	count, err := st.CountRecords()
	if err != nil {
		return err
	}

	fmt.Printf("Latest record:  %s\n", latest.Date.Format("2006-01-02"))
	fmt.Printf("Temp:           %.1fF / %.1fF (mean %.1fF)\n", latest.TMin, latest.TMax, latest.TMean)
	if latest.CumGDD50.Valid {
		fmt.Printf("Cumulative GDD: %.0f (base 50F), %.0f (base 32F)\n",
			latest.CumGDD50.Float64, latest.CumGDD32.Float64)
	}
	if latest.AvgTemp5Day.Valid {
		fmt.Printf("5-day avg temp: %.1fF\n", latest.AvgTemp5Day.Float64)
	}
	if latest.Rain2DaySum.Valid {
		fmt.Printf("2-day rain:     %.2f in\n", latest.Rain2DaySum.Float64)
	}
	fmt.Printf("Records stored: %d\n", count)

	recent, err := st.GetRecentRecords(10)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		fmt.Println("\nLast 10 days:")
		fmt.Println("  date        tmin  tmax  precip  gdd50  cum50")
		for _, rec := range recent {
			precip, cum50 := "-", "-"
			if rec.Precip.Valid {
				precip = fmt.Sprintf("%.2f", rec.Precip.Float64)
			}
			if rec.CumGDD50.Valid {
				cum50 = fmt.Sprintf("%.0f", rec.CumGDD50.Float64)
			}
			fmt.Printf("  %s  %4.0f  %4.0f  %6s  %5.1f  %5s\n",
				rec.Date.Format("2006-01-02"), rec.TMin, rec.TMax, precip, rec.GDD50, cum50)
		}
	}

	if latest.CumGDD50.Valid {
		fmt.Println("\nGDD50 thresholds:")
		for _, th := range []struct {
			label string
			value float64
		}{
			{"spring PRE heads-up", 125},
			{"spring PRE apply-by", 150},
			{"crabgrass germination", 200},
			{"spring broadleaf flush", 300},
		} {
			marker := " "
			if latest.CumGDD50.Float64 >= th.value {
				marker = "x"
			}
			fmt.Printf("  [%s] %-24s %.0f\n", marker, th.label, th.value)
		}
	}

	pending, err := st.GetPendingSchedules()
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		fmt.Println("\nPending spray windows:")
		for _, sched := range pending {
			fmt.Printf("  %-30s %s to %s\n", sched.Name,
				sched.SprayDateEarly.Format("2006-01-02"),
				sched.SprayDateLate.Format("2006-01-02"))
		}
	}

	alerts, err := st.GetSentAlerts()
	if err != nil {
		return err
	}
	if len(alerts) > 0 {
		fmt.Println("\nRecent alerts:")
		for i, a := range alerts {
			if i >= 10 {
				break
			}
			fmt.Printf("  %s  %s\n", a.SentAt.In(loc).Format("2006-01-02"), a.Key)
		}
	}
	return nil
}
