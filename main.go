package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"git.0xdad.com/tblyler/medtaker/api"
	"git.0xdad.com/tblyler/medtaker/config"
	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/db"
	"git.0xdad.com/tblyler/medtaker/jobs"
	"git.0xdad.com/tblyler/medtaker/medication"
	"git.0xdad.com/tblyler/medtaker/reminder"
	"git.0xdad.com/tblyler/medtaker/remote"
	"git.0xdad.com/tblyler/medtaker/tracker"
	"github.com/robfig/cron/v3"
)

// how long a CLI command waits for the remote to refresh a view
const refreshWait = 10 * time.Second

func errLog(messages ...interface{}) {
	fmt.Fprintln(os.Stderr, messages...)
}

func log(messages ...interface{}) {
	fmt.Println(messages...)
}

func help() {
	errLog(`usage: medtaker <command>

  serve                               HTTP API, sweep job and reminders
  run                                 one sweep: generate the horizon and mark missed doses
  schedule add                        prompt for a new schedule
  schedule list
  schedule update <id>                prompt for changes, empty input keeps a value
  schedule delete <id>                delete a schedule and its occurrences
  schedule toggle <id>                enable or disable a schedule
  day [YYYY-MM-DD]                    a day's doses, today by default
  month [YYYY-MM]                     a month's calendar, this month by default
  log <id> [HH:mm] [notes...]         record a dose as taken, now by default
  skip <id>                           record a dose as skipped
  cancel <id>                         revert a dose to upcoming
  reset                               delete every occurrence`)
}

type app struct {
	env          config.Config
	store        *db.Badger
	service      *tracker.Service
	loc          *time.Location
	lookahead    int
	inputScanner *bufio.Scanner
}

func (a *app) prompt(label string) string {
	fmt.Print(label + ": ")
	a.inputScanner.Scan()

	return string(bytes.TrimSpace(a.inputScanner.Bytes()))
}

func (a *app) arg(index int, name string) (string, error) {
	if len(os.Args) <= index {
		return "", fmt.Errorf("must supply %s", name)
	}

	return os.Args[index], nil
}

func (a *app) run(ctx context.Context) error {
	job := jobs.NewSweepJob(a.store, a.loc, a.lookahead)

	result, err := job.Process(ctx, time.Now())
	if err != nil {
		return err
	}

	log("generated", result.Generated, "occurrences, marked", result.Missed, "missed")

	return nil
}

func (a *app) serve(ctx context.Context, reminders *reminder.Scheduler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if reminders != nil {
		reminders.Start()
		defer reminders.Stop()

		if err := a.service.SyncReminders(ctx); err != nil {
			return err
		}
	}

	_, refreshed, err := a.service.LoadSchedules(ctx)
	if err != nil {
		return err
	}

	go func() {
		for range refreshed {
			log("schedules refreshed from remote")
		}
	}()

	job := jobs.NewSweepJob(a.store, a.loc, a.lookahead)
	sweeper := cron.New(cron.WithLocation(a.loc))
	if _, err = job.Register(sweeper, a.env.SweepCron()); err != nil {
		return err
	}

	job.Run(ctx)
	sweeper.Start()
	defer func() {
		<-sweeper.Stop().Done()
	}()

	handler := api.NewHandler(a.store, a.loc).WithLookahead(a.lookahead)
	if reminders != nil {
		handler.WithReminder(reminders)
	}

	server := &http.Server{
		Addr:              a.env.ListenAddr(),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log("listening on", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func parseWeekdays(value string) ([]int, error) {
	var weekdays []int
	for _, field := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
		weekday, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("weekday %q is not a number 0-6: %w", field, err)
		}

		weekdays = append(weekdays, weekday)
	}

	return weekdays, nil
}

// readSchedule prompts for every schedule field. Empty input keeps the
// field's current value in base.
func (a *app) readSchedule(base *medication.Schedule) (*medication.Schedule, error) {
	schedule := *base

	if name := a.prompt(fmt.Sprintf("name [%s]", base.Name)); name != "" {
		schedule.Name = name
	}

	if dosage := a.prompt(fmt.Sprintf("dosage [%s]", base.Dosage)); dosage != "" {
		schedule.Dosage = dosage
	}

	if value := a.prompt(fmt.Sprintf("time of day HH:mm [%s]", base.TimeOfDay)); value != "" {
		tod, err := datetime.ParseTimeOfDay(value)
		if err != nil {
			return nil, err
		}

		schedule.TimeOfDay = tod
	}

	if value := a.prompt(fmt.Sprintf("frequency daily/weekly/custom [%s]", base.Frequency)); value != "" {
		schedule.Frequency = medication.Frequency(strings.ToLower(value))
	}

	if schedule.Frequency == medication.Weekly {
		if value := a.prompt(fmt.Sprintf("weekdays 0=Sunday, comma separated [%s]", joinWeekdays(base.Weekdays()))); value != "" {
			weekdays, err := parseWeekdays(value)
			if err != nil {
				return nil, err
			}

			schedule.ActiveWeekdays = weekdays
		}
	}

	if value := a.prompt(fmt.Sprintf("start date YYYY-MM-DD [%s]", datetime.FormatDate(base.StartDate))); value != "" {
		start, err := datetime.ParseDate(value, a.loc)
		if err != nil {
			return nil, err
		}

		schedule.StartDate = start
	}

	current := "none"
	if base.EndDate != nil {
		current = datetime.FormatDate(*base.EndDate)
	}

	switch value := a.prompt(fmt.Sprintf("end date YYYY-MM-DD or none [%s]", current)); value {
	case "":
	case "none":
		schedule.EndDate = nil
	default:
		end, err := datetime.ParseDate(value, a.loc)
		if err != nil {
			return nil, err
		}

		schedule.EndDate = &end
	}

	return &schedule, nil
}

func (a *app) schedule(ctx context.Context) error {
	command, err := a.arg(2, "an argument to the schedule command")
	if err != nil {
		return err
	}

	switch command {
	case "add":
		base := &medication.Schedule{
			Frequency: medication.Daily,
			StartDate: datetime.StartOfDay(time.Now().In(a.loc)),
			IsActive:  true,
		}

		schedule, err := a.readSchedule(base)
		if err != nil {
			return err
		}

		schedule, err = a.service.AddSchedule(ctx, schedule)
		if err != nil {
			return fmt.Errorf("failed to add schedule: %w", err)
		}

		log("created schedule id", schedule.ID)

	case "list":
		schedules, refreshed, err := a.service.LoadSchedules(ctx)
		if err != nil {
			return err
		}

		if fresh, ok := waitFor(refreshed); ok {
			schedules = fresh
		}

		for _, schedule := range schedules {
			log(formatSchedule(schedule))
		}

	case "update":
		id, err := a.arg(3, "a schedule id")
		if err != nil {
			return err
		}

		existing, err := a.service.Schedule(ctx, id)
		if err != nil {
			return err
		}

		schedule, err := a.readSchedule(existing)
		if err != nil {
			return err
		}

		schedule, err = a.service.UpdateSchedule(ctx, schedule)
		if err != nil {
			return fmt.Errorf("failed to update schedule %s: %w", id, err)
		}

		log(formatSchedule(schedule))

	case "delete":
		id, err := a.arg(3, "a schedule id")
		if err != nil {
			return err
		}

		count, err := a.service.DeleteSchedule(ctx, id)
		if err != nil {
			return err
		}

		log("deleted schedule", id, "and", count, "occurrences")

	case "toggle":
		id, err := a.arg(3, "a schedule id")
		if err != nil {
			return err
		}

		schedule, err := a.service.ToggleSchedule(ctx, id)
		if err != nil {
			return err
		}

		log(formatSchedule(schedule))

	default:
		return fmt.Errorf("unknown schedule command %q", command)
	}

	return nil
}

func (a *app) day(ctx context.Context) error {
	date := time.Now().In(a.loc)
	if len(os.Args) > 2 {
		var err error
		if date, err = datetime.ParseDate(os.Args[2], a.loc); err != nil {
			return err
		}
	}

	view, refreshed, err := a.service.LoadDay(ctx, date)
	if err != nil {
		return err
	}

	if fresh, ok := waitFor(refreshed); ok {
		view = fresh
	}

	log(datetime.FormatDate(view.Date), formatStatistics(view.Statistics))
	for _, occurrence := range view.Occurrences {
		log(formatOccurrence(occurrence))
	}

	return nil
}

func (a *app) month(ctx context.Context) error {
	date := time.Now().In(a.loc)
	if len(os.Args) > 2 {
		var err error
		if date, err = datetime.ParseMonth(os.Args[2], a.loc); err != nil {
			return err
		}
	}

	view, refreshed, err := a.service.LoadMonth(ctx, date)
	if err != nil {
		return err
	}

	if fresh, ok := waitFor(refreshed); ok {
		view = fresh
	}

	for _, day := range datetime.DaysBetween(view.First, view.Last) {
		stats, ok := view.Statistics.For(day)
		if !ok {
			log(datetime.FormatDate(day), "-")
			continue
		}

		log(datetime.FormatDate(day), formatColor(view.Color(day)), formatStatistics(stats))
	}

	return nil
}

func (a *app) logIntake(ctx context.Context) error {
	id, err := a.arg(2, "an occurrence id")
	if err != nil {
		return err
	}

	_, date, err := medication.ParseOccurrenceID(id, a.loc)
	if err != nil {
		return err
	}

	actual := time.Now().In(a.loc)
	var notes []string
	if len(os.Args) > 3 {
		notes = os.Args[3:]
		if tod, err := datetime.ParseTimeOfDay(os.Args[3]); err == nil {
			actual = datetime.Combine(date, tod)
			notes = os.Args[4:]
		}
	}

	occurrence, err := a.service.LogIntake(ctx, id, actual, strings.Join(notes, " "))
	if err != nil {
		return err
	}

	log(formatOccurrence(occurrence))

	return nil
}

func (a *app) occurrence(ctx context.Context, action func(context.Context, string) (*medication.Occurrence, error)) error {
	id, err := a.arg(2, "an occurrence id")
	if err != nil {
		return err
	}

	occurrence, err := action(ctx, id)
	if err != nil {
		return err
	}

	log(formatOccurrence(occurrence))

	return nil
}

func (a *app) reset(ctx context.Context) error {
	if answer := a.prompt("delete every occurrence? type yes"); answer != "yes" {
		return errors.New("reset aborted")
	}

	count, err := a.service.ResetOccurrences(ctx)
	if err != nil {
		return err
	}

	log("deleted", count, "occurrences")

	return nil
}

// waitFor the first refreshed value or give up after refreshWait
func waitFor[T any](refreshed <-chan T) (T, bool) {
	var zero T

	select {
	case value, ok := <-refreshed:
		return value, ok
	case <-time.After(refreshWait):
		return zero, false
	}
}

func main() {
	lenArgs := len(os.Args)
	if lenArgs <= 1 {
		help()
		errLog("must supply at least one argument")
		os.Exit(1)
	}

	if os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		help()
		return
	}

	err := func() error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		env := &config.Env{}

		badgerPath, err := env.BadgerPath()
		if err != nil {
			return err
		}

		loc, err := env.Location()
		if err != nil {
			return err
		}

		lookahead, err := env.LookaheadDays()
		if err != nil {
			return err
		}

		b, err := db.NewBadger(badgerPath)
		if err != nil {
			return err
		}

		defer b.Close()

		opts := []tracker.Option{tracker.WithLookahead(lookahead)}

		if remoteURL, err := env.RemoteURL(); err == nil {
			opts = append(opts, tracker.WithRemote(remote.NewClient(remoteURL, loc).WithToken(env.RemoteToken())))
		}

		var reminders *reminder.Scheduler
		if os.Args[1] == "serve" {
			reminders, err = newReminders(env, loc)
			if err != nil {
				return err
			}

			if reminders != nil {
				opts = append(opts, tracker.WithReminder(reminders))
			}
		}

		service := tracker.NewService(b, loc, opts...)
		defer service.Close()

		a := &app{
			env:          env,
			store:        b,
			service:      service,
			loc:          loc,
			lookahead:    lookahead,
			inputScanner: bufio.NewScanner(os.Stdin),
		}

		ctx := context.Background()

		switch os.Args[1] {
		case "serve":
			return a.serve(ctx, reminders)
		case "run":
			return a.run(ctx)
		case "schedule":
			return a.schedule(ctx)
		case "day":
			return a.day(ctx)
		case "month":
			return a.month(ctx)
		case "log":
			return a.logIntake(ctx)
		case "skip":
			return a.occurrence(ctx, service.MarkSkipped)
		case "cancel":
			return a.occurrence(ctx, service.Cancel)
		case "reset":
			return a.reset(ctx)
		default:
			help()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}()

	if err != nil {
		errLog(err.Error())
		os.Exit(1)
	}
}

// newReminders is nil when pushover is not configured
func newReminders(env config.Config, loc *time.Location) (*reminder.Scheduler, error) {
	token, err := env.PushoverAPIToken()
	if errors.Is(err, config.ErrEnvVariableNotSet) {
		errLog("reminders disabled:", err)
		return nil, nil
	}

	userKey, err := env.PushoverUserKey()
	if err != nil {
		return nil, err
	}

	lead, err := env.ReminderLeadMinutes()
	if err != nil {
		return nil, err
	}

	notifier := reminder.NewPushover(token, userKey, env.PushoverDevice())

	return reminder.NewScheduler(notifier, loc, lead), nil
}
