package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"comicdl/internal/commands"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Invoke runs a named command; args is marshaled to JSON unless it is nil.
// Command failures are reported inside the Result.
func (c *Client) Invoke(name string, args any) (commands.Result, error) {
	req := InvokeRequest{Name: name}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return commands.Result{}, fmt.Errorf("encode %s arguments: %w", name, err)
		}
		req.Args = raw
	}
	resp, err := call[commands.Result](c, "Invoke", req)
	if err != nil {
		return commands.Result{}, err
	}
	return *resp, nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Events polls the daemon event journal.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	return call[EventsResponse](c, "Events", req)
}

// Logs polls the daemon log stream.
func (c *Client) Logs(req LogsRequest) (*LogsResponse, error) {
	return call[LogsResponse](c, "Logs", req)
}

// QueueList returns history items optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	return call[QueueListResponse](c, "QueueList", QueueListRequest{Statuses: statuses})
}

// QueueDescribe returns details for a single history item.
func (c *Client) QueueDescribe(id int64) (*QueueDescribeResponse, error) {
	return call[QueueDescribeResponse](c, "QueueDescribe", QueueDescribeRequest{ID: id})
}

// QueueClear removes history items in the given scope.
func (c *Client) QueueClear(scope ClearScope) (*QueueClearResponse, error) {
	return call[QueueClearResponse](c, "QueueClear", QueueClearRequest{Scope: scope})
}

// QueueReset resets items stuck in processing states.
func (c *Client) QueueReset() (*QueueResetResponse, error) {
	return call[QueueResetResponse](c, "QueueReset", QueueResetRequest{})
}

// QueueRetry retries failed items; no ids retries all of them.
func (c *Client) QueueRetry(ids []int64) (*QueueRetryResponse, error) {
	return call[QueueRetryResponse](c, "QueueRetry", QueueRetryRequest{IDs: ids})
}

// QueueRemove deletes history items by id.
func (c *Client) QueueRemove(ids []int64) (*QueueRemoveResponse, error) {
	return call[QueueRemoveResponse](c, "QueueRemove", QueueRemoveRequest{IDs: ids})
}

// QueueHealth returns history diagnostics.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	return call[QueueHealthResponse](c, "QueueHealth", QueueHealthRequest{})
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
