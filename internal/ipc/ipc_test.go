package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"comicdl/internal/api"
	"comicdl/internal/archive"
	"comicdl/internal/catalog"
	"comicdl/internal/commands"
	"comicdl/internal/daemon"
	"comicdl/internal/download"
	"comicdl/internal/events"
	"comicdl/internal/ipc"
	"comicdl/internal/logging"
	"comicdl/internal/queue"
	"comicdl/internal/testsupport"
	"comicdl/internal/workflow"
)

type emptyCatalog struct{}

func (emptyCatalog) ImageIndex(context.Context, int64) (*catalog.ImageIndex, error) {
	return &catalog.ImageIndex{}, nil
}

func (emptyCatalog) ImageTokens(context.Context, []string) ([]catalog.ImageToken, error) {
	return nil, nil
}

type fixture struct {
	store   *queue.Store
	bus     *events.Bus
	hub     *logging.StreamHub
	journal *events.Journal
	client  *ipc.Client
	daemon  *daemon.Daemon
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "off"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	logger := logging.NewNop()
	bus := events.NewBus()
	hub := logging.NewStreamHub(128)
	journal := events.NewJournal(256)

	coord, err := download.NewCoordinator(cfg, download.Options{Catalog: emptyCatalog{}, History: store, Bus: bus})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logger, nil)
	mgr.ConfigureStages(workflow.StageSet{Archive: archive.NewStage(cfg, logger)})
	d, err := daemon.New(cfg, store, logger, daemon.Components{
		Workflow:  mgr,
		Downloads: coord,
		Commands:  commands.New(commands.Dependencies{Config: cfg, Downloads: coord, History: store}),
		Bus:       bus,
		Journal:   journal,
		LogHub:    hub,
		LogPath:   filepath.Join(cfg.Paths.LogDir, "comicdl.log"),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &fixture{store: store, bus: bus, hub: hub, journal: journal, client: client, daemon: d}
}

func TestIPCStatusAndCommands(t *testing.T) {
	f := newFixture(t)

	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(status.Workflow.StageHealth) == 0 {
		t.Fatal("expected stage health in status")
	}

	result, err := f.client.Invoke("get_config", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var view commands.ConfigView
	if err := result.Decode(&view); err != nil {
		t.Fatalf("get_config failed: %v", err)
	}
	if view.DownloadDir == "" {
		t.Fatal("expected download dir in config view")
	}

	result, err = f.client.Invoke("no_such_command", map[string]string{"x": "y"})
	if err != nil {
		t.Fatalf("Invoke transport error: %v", err)
	}
	if result.Status != commands.StatusError || !strings.Contains(result.Error, "unknown command") {
		t.Fatalf("unexpected result for unknown command: %+v", result)
	}
}

func TestIPCQueueMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := testsupport.Enqueue(t, f.store, 1001, "Comic", "Ep 1")
	a.Status = queue.StatusCompleted
	if err := f.store.Update(ctx, a); err != nil {
		t.Fatalf("Update a: %v", err)
	}
	b := testsupport.Enqueue(t, f.store, 1002, "Comic", "Ep 2")
	b.SetFailed("boom")
	if err := f.store.Update(ctx, b); err != nil {
		t.Fatalf("Update b: %v", err)
	}
	c := testsupport.Enqueue(t, f.store, 1003, "Comic", "Ep 3")
	c.Status = queue.StatusDownloading
	if err := f.store.Update(ctx, c); err != nil {
		t.Fatalf("Update c: %v", err)
	}

	listResp, err := f.client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(listResp.Items))
	}
	failedResp, err := f.client.QueueList([]string{string(queue.StatusFailed)})
	if err != nil {
		t.Fatalf("QueueList failed filter: %v", err)
	}
	if len(failedResp.Items) != 1 || failedResp.Items[0].ID != b.ID || failedResp.Items[0].ErrorMessage != "boom" {
		t.Fatalf("unexpected failed items: %+v", failedResp.Items)
	}
	if _, err := f.client.QueueList([]string{"ripping"}); err == nil {
		t.Fatal("expected error for unknown status")
	}

	desc, err := f.client.QueueDescribe(a.ID)
	if err != nil || desc.Item.EpisodeID != 1001 {
		t.Fatalf("QueueDescribe = %+v, %v", desc, err)
	}
	if _, err := f.client.QueueDescribe(9999); err == nil {
		t.Fatal("expected not found error")
	}

	resetResp, err := f.client.QueueReset()
	if err != nil {
		t.Fatalf("QueueReset failed: %v", err)
	}
	if resetResp.Updated != 1 {
		t.Fatalf("expected 1 item reset, got %d", resetResp.Updated)
	}
	if got, _ := f.store.GetByID(ctx, c.ID); got.Status != queue.StatusPending {
		t.Fatalf("expected downloading item rolled back to pending, got %s", got.Status)
	}

	health, err := f.client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if health.Total != 3 || health.Failed != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health response: %+v", health)
	}

	retryResp, err := f.client.QueueRetry([]int64{a.ID, 9999})
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if retryResp.Updated != 0 || len(retryResp.Items) != 2 ||
		retryResp.Items[0].Outcome != api.RetryItemNotFailed || retryResp.Items[1].Outcome != api.RetryItemNotFound {
		t.Fatalf("unexpected retry response: %+v", retryResp)
	}

	removeResp, err := f.client.QueueRemove([]int64{c.ID, 9999})
	if err != nil {
		t.Fatalf("QueueRemove failed: %v", err)
	}
	if removeResp.RemovedCount != 1 || removeResp.Items[1].Outcome != api.RemoveItemNotFound {
		t.Fatalf("unexpected remove response: %+v", removeResp)
	}

	cleared, err := f.client.QueueClear(ipc.ClearCompleted)
	if err != nil || cleared.Removed != 1 {
		t.Fatalf("QueueClear completed = %+v, %v", cleared, err)
	}
	cleared, err = f.client.QueueClear(ipc.ClearFailed)
	if err != nil || cleared.Removed != 1 {
		t.Fatalf("QueueClear failed = %+v, %v", cleared, err)
	}
	if _, err := f.client.QueueClear("everything"); err == nil {
		t.Fatal("expected error for unknown scope")
	}

	dbHealth, err := f.client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "history.db") {
		t.Fatalf("unexpected db path: %s", dbHealth.DBPath)
	}

	notifyResp, err := f.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent || notifyResp.Message == "" {
		t.Fatalf("expected unsent notification with message, got %+v", notifyResp)
	}
}

func TestIPCEventsAndLogs(t *testing.T) {
	f := newFixture(t)

	since := f.journal.Last()
	f.bus.Publish(events.EpisodeStart{EpID: 42, Title: "Ep 42", Total: 3})

	evResp, err := f.client.Events(ipc.EventsRequest{Since: since, WaitMillis: 500})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	found := false
	for _, env := range evResp.Events {
		if env.Name == events.KindEpisodeStart.Name() {
			found = true
		}
	}
	if !found || evResp.Next <= since {
		t.Fatalf("episode start not journaled: %+v", evResp)
	}

	f.hub.Publish(logging.LogEvent{Level: "INFO", Message: "first", Component: "download"})
	f.hub.Publish(logging.LogEvent{Level: "INFO", Message: "second", Component: "workflow-manager", EpisodeID: 42})

	tail, err := f.client.Logs(ipc.LogsRequest{Tail: true, Limit: 10})
	if err != nil {
		t.Fatalf("Logs tail failed: %v", err)
	}
	if len(tail.Events) < 2 {
		t.Fatalf("expected tail events, got %+v", tail.Events)
	}

	filtered, err := f.client.Logs(ipc.LogsRequest{EpisodeID: 42, Limit: 100})
	if err != nil {
		t.Fatalf("Logs filter failed: %v", err)
	}
	if len(filtered.Events) != 1 || filtered.Events[0].Message != "second" {
		t.Fatalf("unexpected filtered logs: %+v", filtered.Events)
	}

	followDone := make(chan struct{})
	go func(cursor uint64) {
		defer close(followDone)
		resp, err := f.client.Logs(ipc.LogsRequest{Since: cursor, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("Logs follow error: %v", err)
			return
		}
		if len(resp.Events) != 1 || resp.Events[0].Message != "third" {
			t.Errorf("unexpected follow events: %+v", resp.Events)
		}
	}(tail.Next)

	time.Sleep(100 * time.Millisecond)
	f.hub.Publish(logging.LogEvent{Level: "INFO", Message: "third"})

	select {
	case <-followDone:
	case <-time.After(5 * time.Second):
		t.Fatal("log follow timed out")
	}
}

func TestIPCStopShutsDaemonDown(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected stop response to be true")
	}
	select {
	case <-f.daemon.Done():
	case <-time.After(time.Second):
		t.Fatal("daemon Done not closed")
	}
	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}
