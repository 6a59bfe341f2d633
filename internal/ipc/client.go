package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
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
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status including preflight checks.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Bindery.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Bindery.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns tracked jobs.
func (c *Client) JobList(includeHidden bool) (*JobListResponse, error) {
	var resp JobListResponse
	req := JobListRequest{IncludeHidden: includeHidden}
	if err := c.client.Call("Bindery.JobList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobShow returns details for a single job.
func (c *Client) JobShow(internalID string) (*JobShowResponse, error) {
	var resp JobShowResponse
	req := JobShowRequest{InternalID: internalID}
	if err := c.client.Call("Bindery.JobShow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobSubmit creates and submits a job in one call.
func (c *Client) JobSubmit(req JobSubmitRequest) (*JobSubmitResponse, error) {
	var resp JobSubmitResponse
	if err := c.client.Call("Bindery.JobSubmit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobCancel withdraws an unsubmitted job.
func (c *Client) JobCancel(internalID string) (*JobCancelResponse, error) {
	var resp JobCancelResponse
	req := JobCancelRequest{InternalID: internalID}
	if err := c.client.Call("Bindery.JobCancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobDelete removes a job from the engine and the local store.
func (c *Client) JobDelete(internalID string) (*JobDeleteResponse, error) {
	var resp JobDeleteResponse
	req := JobDeleteRequest{InternalID: internalID}
	if err := c.client.Call("Bindery.JobDelete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobClose dismisses a finished job from the visible list.
func (c *Client) JobClose(internalID string) (*JobCloseResponse, error) {
	var resp JobCloseResponse
	req := JobCloseRequest{InternalID: internalID}
	if err := c.client.Call("Bindery.JobClose", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobLog fetches a job's execution log text.
func (c *Client) JobLog(internalID string) (*JobLogResponse, error) {
	var resp JobLogResponse
	req := JobLogRequest{InternalID: internalID}
	if err := c.client.Call("Bindery.JobLog", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScriptList returns the engine's script catalog.
func (c *Client) ScriptList() (*ScriptListResponse, error) {
	var resp ScriptListResponse
	if err := c.client.Call("Bindery.ScriptList", ScriptListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScriptShow returns one script's full definition, with option choices
// resolved where the engine publishes a datatype for them.
func (c *Client) ScriptShow(id string) (*ScriptShowResponse, error) {
	var resp ScriptShowResponse
	req := ScriptShowRequest{ID: id}
	if err := c.client.Call("Bindery.ScriptShow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VoiceList returns the known TTS voices, optionally forcing a refresh.
func (c *Client) VoiceList(refresh bool) (*VoiceListResponse, error) {
	var resp VoiceListResponse
	req := VoiceListRequest{Refresh: refresh}
	if err := c.client.Call("Bindery.VoiceList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TTSStatus returns per-provider TTS connection state.
func (c *Client) TTSStatus() (*TTSStatusResponse, error) {
	var resp TTSStatusResponse
	if err := c.client.Call("Bindery.TTSStatus", TTSStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PropertyList returns the engine's property map.
func (c *Client) PropertyList() (*PropertyListResponse, error) {
	var resp PropertyListResponse
	if err := c.client.Call("Bindery.PropertyList", PropertyListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PropertySet applies property changes and the follow-up TTS reconciliation.
func (c *Client) PropertySet(properties []PropertyInfo) (*PropertySetResponse, error) {
	var resp PropertySetResponse
	req := PropertySetRequest{Properties: properties}
	if err := c.client.Call("Bindery.PropertySet", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryList returns recent submission records.
func (c *Client) HistoryList(limit int) (*HistoryListResponse, error) {
	var resp HistoryListResponse
	req := HistoryListRequest{Limit: limit}
	if err := c.client.Call("Bindery.HistoryList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns daemon log lines from the given offset.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Bindery.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Bindery.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
