package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/telearc/archive-console/internal/api"
	"github.com/telearc/archive-console/internal/config"
	"github.com/telearc/archive-console/internal/console"
	"github.com/telearc/archive-console/internal/export"
	"github.com/telearc/archive-console/internal/logger"
	"github.com/telearc/archive-console/internal/models"
	"github.com/telearc/archive-console/internal/state"
)

const usageText = `console is the archive admin console.

Usage:
  console <command> [flags]

Commands:
  login        store an access token and verify it
  logout       drop the stored access token
  groups       list archived groups in display order
  add-group    add a group by @username
  sync-group   trigger a manual history sync
  update-group pin, unpin or (de)activate a group
  messages     show or search a group's history
  send         post a text message into a group
  delete       delete a message from the archive
  download     fetch a message's media file
  rules        list filter rules, import/export rule files
  delete-rule  delete a filter rule
  preview-rule show which recent messages a rule would select
  tasks        list download tasks
  create-task  create a download task
  start-task   start a pending or paused task
  pause-task   pause a running task
  stop-task    stop a task and reset its progress
  task-runs    show a task's run history
  logs         show or clear backend logs
  dashboard    show archive statistics
  follow       stream live updates for a group
  health       check backend availability
  help         show help

Examples:
  console login 2f7a…
  console messages 1001 -limit 100 -export release-watch.xlsx
  console messages 1001 -search "deploy" -has-media true
  console follow 1001
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	case "login":
		exitOnErr("login", runLogin(args[1:]))
	case "logout":
		exitOnErr("logout", runLogout(args[1:]))
	case "groups":
		exitOnErr("groups", runGroups(args[1:]))
	case "add-group":
		exitOnErr("add-group", runAddGroup(args[1:]))
	case "sync-group":
		exitOnErr("sync-group", runSyncGroup(args[1:]))
	case "update-group":
		exitOnErr("update-group", runUpdateGroup(args[1:]))
	case "messages":
		exitOnErr("messages", runMessages(args[1:]))
	case "send":
		exitOnErr("send", runSend(args[1:]))
	case "delete":
		exitOnErr("delete", runDelete(args[1:]))
	case "download":
		exitOnErr("download", runDownload(args[1:]))
	case "rules":
		exitOnErr("rules", runRules(args[1:]))
	case "delete-rule":
		exitOnErr("delete-rule", runDeleteRule(args[1:]))
	case "preview-rule":
		exitOnErr("preview-rule", runPreviewRule(args[1:]))
	case "tasks":
		exitOnErr("tasks", runTasks(args[1:]))
	case "create-task":
		exitOnErr("create-task", runCreateTask(args[1:]))
	case "start-task":
		exitOnErr("start-task", runTaskVerb(args[1:], "start"))
	case "pause-task":
		exitOnErr("pause-task", runTaskVerb(args[1:], "pause"))
	case "stop-task":
		exitOnErr("stop-task", runTaskVerb(args[1:], "stop"))
	case "task-runs":
		exitOnErr("task-runs", runTaskRuns(args[1:]))
	case "logs":
		exitOnErr("logs", runLogs(args[1:]))
	case "dashboard":
		exitOnErr("dashboard", runDashboard(args[1:]))
	case "follow":
		exitOnErr("follow", runFollow(args[1:]))
	case "health":
		exitOnErr("health", runHealth(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func exitOnErr(command string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
	os.Exit(1)
}

// setup builds the full client stack and restores the previous session.
// The returned cleanup closes the state store.
func setup() (*console.Service, *logger.Logger, func(), error) {
	// 1. Load .env and config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	// 3. Open local state store
	session, err := state.Open(cfg.StateDBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open state store: %w", err)
	}

	// 4. Build API client and service
	client := api.New(cfg, log)
	svc := console.NewService(cfg, client, session, console.NewLogNotifier(log), log)

	// 5. Restore token, nav trail and last selection
	if _, err := svc.RestoreSession(); err != nil {
		session.Close()
		return nil, nil, nil, fmt.Errorf("restore session: %w", err)
	}

	cleanup := func() { session.Close() }
	return svc, log, cleanup, nil
}

func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("login requires an access token")
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.SetToken(fs.Arg(0)); err != nil {
		return err
	}
	health, err := svc.Health(context.Background())
	if err != nil {
		return fmt.Errorf("token stored but backend unreachable: %w", err)
	}
	fmt.Fprintf(os.Stdout, "ok (backend %s)\n", health.Version)
	return nil
}

func runLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	svc.Logout()
	fmt.Fprintln(os.Stdout, "ok")
	return nil
}

func runGroups(args []string) error {
	fs := flag.NewFlagSet("groups", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	groups, err := svc.RefreshGroups(context.Background())
	if err != nil {
		return err
	}
	printGroups(groups)
	return nil
}

func runAddGroup(args []string) error {
	fs := flag.NewFlagSet("add-group", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("add-group requires a @username")
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	group, err := svc.AddGroup(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "added group %d (@%s)\n", group.ID, group.Username)
	return nil
}

func runSyncGroup(args []string) error {
	fs := flag.NewFlagSet("sync-group", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupID, err := idArg(fs, 0, "group id")
	if err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.SyncGroup(context.Background(), groupID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "synced group %d: %d new messages\n", result.GroupID, result.NewMessages)
	return nil
}

func runUpdateGroup(args []string) error {
	fs := flag.NewFlagSet("update-group", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	pin := fs.Bool("pin", false, "pin the group")
	unpin := fs.Bool("unpin", false, "unpin the group")
	order := fs.Int("order", 0, "pin order (with -pin)")
	active := fs.String("active", "", "set active flag: true|false")
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupID, err := idArg(fs, 0, "group id")
	if err != nil {
		return err
	}
	if *pin && *unpin {
		return errors.New("-pin and -unpin are mutually exclusive")
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	var group *models.Group
	switch {
	case *pin:
		group, err = svc.SetGroupPinned(ctx, groupID, true, *order)
	case *unpin:
		group, err = svc.SetGroupPinned(ctx, groupID, false, 0)
	}
	if err != nil {
		return err
	}

	if *active != "" {
		want, perr := strconv.ParseBool(*active)
		if perr != nil {
			return fmt.Errorf("invalid -active value %q", *active)
		}
		group, err = svc.SetGroupActive(ctx, groupID, want)
		if err != nil {
			return err
		}
	}
	if group == nil {
		return errors.New("nothing to update: pass -pin, -unpin or -active")
	}
	printGroups([]models.Group{*group})
	return nil
}

func runMessages(args []string) error {
	fs := flag.NewFlagSet("messages", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 0, "number of messages (default: configured page size)")
	search := fs.String("search", "", "substring search in text")
	sender := fs.String("sender", "", "filter by sender username")
	mediaType := fs.String("media-type", "", "filter by media type")
	hasMedia := fs.String("has-media", "", "filter by media presence: true|false")
	exportPath := fs.String("export", "", "write the messages to a .csv or .xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupID, err := idArg(fs, 0, "group id")
	if err != nil {
		return err
	}

	filter := &models.MessageFilter{
		Search:         *search,
		SenderUsername: *sender,
		MediaType:      models.MediaType(*mediaType),
	}
	if *hasMedia != "" {
		want, perr := strconv.ParseBool(*hasMedia)
		if perr != nil {
			return fmt.Errorf("invalid -has-media value %q", *hasMedia)
		}
		filter.HasMedia = &want
	}

	svc, cleanup, err := setupWithPageSize(*limit)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	if !filter.IsZero() {
		hits, err := svc.Search(ctx, groupID, filter, *limit)
		if err != nil {
			return err
		}
		if *exportPath != "" {
			return exportList(*exportPath, hits)
		}
		printMessages(hits)
		return nil
	}

	if err := svc.SelectGroup(ctx, groupID); err != nil {
		return err
	}
	if *exportPath != "" {
		count, err := svc.ExportMessages(*exportPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "exported %d messages to %s\n", count, *exportPath)
		return nil
	}
	printMessages(svc.Messages().Messages())
	return nil
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupID, err := idArg(fs, 0, "group id")
	if err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("send requires a group id and a message text")
	}
	text := strings.Join(fs.Args()[1:], " ")

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.SelectGroup(ctx, groupID); err != nil {
		return err
	}
	msg, err := svc.SendMessage(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "sent message %d\n", msg.ID)
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupID, err := idArg(fs, 0, "group id")
	if err != nil {
		return err
	}
	messageID, err := idArg(fs, 1, "message id")
	if err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.SelectGroup(ctx, groupID); err != nil {
		return err
	}
	if err := svc.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "ok")
	return nil
}

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 0, "how many recent messages to consider (default: configured page size)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupID, err := idArg(fs, 0, "group id")
	if err != nil {
		return err
	}
	messageID, err := idArg(fs, 1, "message id")
	if err != nil {
		return err
	}

	svc, cleanup, err := setupWithPageSize(*limit)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.SelectGroup(ctx, groupID); err != nil {
		return err
	}
	path, err := svc.DownloadMedia(ctx, messageID)
	if err != nil {
		if api.IsNotFound(err) {
			return fmt.Errorf("%w (only the %d most recent messages are loaded; raise -limit)", err, svc.Messages().Len())
		}
		return err
	}
	fmt.Fprintln(os.Stdout, path)
	return nil
}

func runRules(args []string) error {
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	importPath := fs.String("import", "", "create rules from a YAML file")
	exportPath := fs.String("export", "", "write all rules to a YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	if *importPath != "" {
		imported, err := svc.ImportRules(ctx, *importPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "imported %d rules\n", len(imported))
	}
	if *exportPath != "" {
		count, err := svc.ExportRules(ctx, *exportPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "exported %d rules to %s\n", count, *exportPath)
		return nil
	}

	rules, err := svc.Rules(ctx)
	if err != nil {
		return err
	}
	printRules(rules)
	return nil
}

func runDeleteRule(args []string) error {
	fs := flag.NewFlagSet("delete-rule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ruleID, err := idArg(fs, 0, "rule id")
	if err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.DeleteRule(context.Background(), ruleID); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "ok")
	return nil
}

func runPreviewRule(args []string) error {
	fs := flag.NewFlagSet("preview-rule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	groupID := fs.Int64("group", 0, "group to preview against (default: last selected)")
	limit := fs.Int("limit", 0, "how many recent messages to scan (default 100)")
	exportPath := fs.String("export", "", "write the matching messages to a .csv or .xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ruleID, err := idArg(fs, 0, "rule id")
	if err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	rule, err := svc.Rule(ctx, ruleID)
	if err != nil {
		return err
	}
	hits, err := svc.PreviewRule(ctx, *groupID, *rule, *limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "rule %q selects %d of the scanned messages\n", rule.Name, len(hits))
	if *exportPath != "" {
		return exportList(*exportPath, hits)
	}
	printMessages(hits)
	return nil
}

func runTasks(args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	tasks, err := svc.RefreshTasks(context.Background())
	if err != nil {
		return err
	}
	printTasks(tasks)
	return nil
}

func runCreateTask(args []string) error {
	fs := flag.NewFlagSet("create-task", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	name := fs.String("name", "", "task name")
	groupID := fs.Int64("group", 0, "group id")
	dest := fs.String("dest", "", "destination path on the backend")
	ruleIDs := fs.String("rules", "", "comma-separated rule ids")
	schedule := fs.String("schedule", "", "cron expression (empty = one-off)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	task := models.DownloadTask{
		Name:            *name,
		GroupID:         *groupID,
		DestinationPath: *dest,
		Schedule:        *schedule,
	}
	for _, raw := range strings.Split(*ruleIDs, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid rule id %q", raw)
		}
		task.RuleIDs = append(task.RuleIDs, id)
	}
	if err := task.Validate(); err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	created, err := svc.CreateTask(context.Background(), task)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "created task %d\n", created.ID)
	return nil
}

func runTaskVerb(args []string, verb string) error {
	fs := flag.NewFlagSet(verb+"-task", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	taskID, err := idArg(fs, 0, "task id")
	if err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	var task *models.DownloadTask
	switch verb {
	case "start":
		task, err = svc.StartTask(ctx, taskID)
	case "pause":
		task, err = svc.PauseTask(ctx, taskID)
	case "stop":
		task, err = svc.StopTask(ctx, taskID)
	}
	if err != nil {
		return err
	}
	printTasks([]models.DownloadTask{*task})
	return nil
}

func runTaskRuns(args []string) error {
	fs := flag.NewFlagSet("task-runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	taskID, err := idArg(fs, 0, "task id")
	if err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := svc.TaskRuns(context.Background(), taskID)
	if err != nil {
		return err
	}
	printRuns(runs)
	return nil
}

func runLogs(args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	level := fs.String("level", "", "minimum level filter")
	limit := fs.Int("limit", 50, "number of lines")
	clear := fs.Bool("clear", false, "clear the backend log buffer")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	if *clear {
		if err := svc.ClearBackendLogs(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "ok")
		return nil
	}

	resp, err := svc.BackendLogs(ctx, *level, *limit)
	if err != nil {
		return err
	}
	printLogs(resp.Logs)
	return nil
}

func runDashboard(args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	overview, err := svc.Overview(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "groups %d (%d active)   messages %d (%d today)   media %d (%d downloaded)   running tasks %d\n",
		overview.TotalGroups, overview.ActiveGroups,
		overview.TotalMessages, overview.MessagesToday,
		overview.MediaFiles, overview.DownloadedFiles,
		overview.RunningTasks)

	summaries, err := svc.GroupSummaries(ctx)
	if err != nil {
		return err
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "GROUP\tTITLE\tMESSAGES\tMEDIA\tLAST MESSAGE\tACTIVE")
	for _, s := range summaries {
		last := "-"
		if s.LastMessageAt != nil {
			last = s.LastMessageAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(writer, "%d\t%s\t%d\t%d\t%s\t%v\n",
			s.GroupID, s.Title, s.MessageCount, s.MediaCount, last, s.IsActive)
	}
	_ = writer.Flush()

	stats, err := svc.DownloadStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "downloads: %d files (%d failed, %d active), %d bytes\n",
		stats.TotalFiles, stats.FailedFiles, stats.ActiveDownloads, stats.TotalBytes)

	system, err := svc.SystemInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "backend %s, up %s, %d clients connected\n",
		system.Version, (time.Duration(system.UptimeSeconds) * time.Second).String(), system.ConnectedClients)
	return nil
}

func runFollow(args []string) error {
	fs := flag.NewFlagSet("follow", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, log, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// pick the group: explicit arg wins, then the restored nav trail
	var groupID int64
	if entry, ok := svc.History().Current(); ok {
		groupID = entry.GroupID
	}
	if fs.NArg() > 0 {
		groupID, err = idArg(fs, 0, "group id")
		if err != nil {
			return err
		}
	}
	if groupID == 0 {
		return errors.New("follow requires a group id (none selected previously)")
	}
	if err := svc.SelectGroup(ctx, groupID); err != nil {
		return err
	}
	printMessages(svc.Messages().Messages())

	go func() {
		if err := svc.RunBridge(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("live bridge stopped")
		}
	}()

	// print whatever lands in the store that we have not shown yet
	seen := make(map[int64]bool, svc.Messages().Len())
	for _, msg := range svc.Messages().Messages() {
		seen[msg.ID] = true
	}
	var lastUnseen int64

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, msg := range svc.Messages().Messages() {
				if seen[msg.ID] {
					continue
				}
				seen[msg.ID] = true
				printMessages([]models.Message{msg})
			}
			if unseen := svc.UnseenCount(); unseen != lastUnseen {
				lastUnseen = unseen
				if unseen > 0 {
					log.Info().Int64("count", unseen).Msg("unseen messages in other groups")
				}
			}
		}
	}
}

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	health, err := svc.Health(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s (backend %s)\n", health.Status, health.Version)
	return nil
}

// setupWithPageSize is setup with a one-shot page size override.
func setupWithPageSize(pageSize int) (*console.Service, func(), error) {
	svc, _, cleanup, err := setup()
	if err != nil {
		return nil, nil, err
	}
	if pageSize > 0 {
		svc.SetPageSize(pageSize)
	}
	return svc, cleanup, nil
}

func idArg(fs *flag.FlagSet, index int, what string) (int64, error) {
	if fs.NArg() <= index {
		return 0, fmt.Errorf("missing %s argument", what)
	}
	id, err := strconv.ParseInt(fs.Arg(index), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, fs.Arg(index))
	}
	return id, nil
}

func exportList(path string, msgs []models.Message) error {
	if len(msgs) == 0 {
		return errors.New("nothing to export")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format := export.FormatCSV
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		format = export.FormatXLSX
	}
	if err := export.Messages(f, format, msgs); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "exported %d messages to %s\n", len(msgs), path)
	return nil
}

func printGroups(groups []models.Group) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTITLE\tUSERNAME\tMEMBERS\tACTIVE\tPINNED")
	for _, g := range groups {
		pinned := "-"
		if g.IsPinned {
			pinned = fmt.Sprintf("#%d", g.PinOrder)
		}
		fmt.Fprintf(writer, "%d\t%s\t@%s\t%d\t%v\t%s\n",
			g.ID, g.Title, g.Username, g.MemberCount, g.IsActive, pinned)
	}
	_ = writer.Flush()
}

func printMessages(msgs []models.Message) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	for _, m := range msgs {
		text := strings.ReplaceAll(m.Text, "\n", " ")
		if runes := []rune(text); len(runes) > 80 {
			text = string(runes[:77]) + "..."
		}
		marker := ""
		if m.HasMedia() {
			marker = fmt.Sprintf(" [%s %s]", m.Media.Type, m.Media.Filename)
		}
		if m.EditedAt != nil {
			marker += " (edited)"
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s%s\n",
			m.ID, m.Date.Format("2006-01-02 15:04"), m.SenderUsername, text, marker)
	}
	_ = writer.Flush()
}

func printRules(rules []models.Rule) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tACTIVE\tCONDITIONS")
	for _, r := range rules {
		var conds []string
		if len(r.Keywords) > 0 {
			conds = append(conds, "keywords="+strings.Join(r.Keywords, ","))
		}
		if len(r.MediaTypes) > 0 {
			types := make([]string, len(r.MediaTypes))
			for i, t := range r.MediaTypes {
				types[i] = string(t)
			}
			conds = append(conds, "media="+strings.Join(types, ","))
		}
		if r.SenderUsername != "" {
			conds = append(conds, "sender=@"+r.SenderUsername)
		}
		if r.IsForwarded != nil {
			conds = append(conds, fmt.Sprintf("forwarded=%v", *r.IsForwarded))
		}
		if r.IsPinned != nil {
			conds = append(conds, fmt.Sprintf("pinned=%v", *r.IsPinned))
		}
		fmt.Fprintf(writer, "%d\t%s\t%v\t%s\n", r.ID, r.Name, r.IsActive, strings.Join(conds, " "))
	}
	_ = writer.Flush()
}

func printTasks(tasks []models.DownloadTask) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tGROUP\tSTATUS\tPROGRESS\tSCHEDULE")
	for _, t := range tasks {
		progress := "-"
		if t.Progress.TotalMessages > 0 {
			progress = fmt.Sprintf("%d/%d (%d files, %d failed)",
				t.Progress.ProcessedMessages, t.Progress.TotalMessages,
				t.Progress.DownloadedFiles, t.Progress.FailedFiles)
		}
		schedule := t.Schedule
		if schedule == "" {
			schedule = "-"
		}
		fmt.Fprintf(writer, "%d\t%s\t%d\t%s\t%s\t%s\n",
			t.ID, t.Name, t.GroupID, t.Status, progress, schedule)
	}
	_ = writer.Flush()
}

func printRuns(runs []models.TaskRun) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTARTED\tFINISHED\tSTATUS\tDOWNLOADED\tERROR")
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		errText := r.Error
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), finished, r.Status, r.Downloaded, errText)
	}
	_ = writer.Flush()
}

func printLogs(logs []models.LogEntry) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	for _, entry := range logs {
		source := entry.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(writer, "%s\t%-5s\t%s\t%s\n",
			entry.CreatedAt.Format("2006-01-02 15:04:05"), strings.ToUpper(entry.Level), source, entry.Message)
	}
	_ = writer.Flush()
}
