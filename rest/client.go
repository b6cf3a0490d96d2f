package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry"
)

// Client speaks the wire protocol against a remote server. It
// implements quarry.Executor, so queries built locally run remotely
// unchanged.
type Client struct {
	base    string
	appID   string
	restKey string
	http    *fasthttp.Client
	log     *zap.Logger
}

var _ quarry.Executor = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCredentials sets the application id and REST key sent with every
// request.
func WithCredentials(appID, restKey string) ClientOption {
	return func(client *Client) {
		client.appID = appID
		client.restKey = restKey
	}
}

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(transport *fasthttp.Client) ClientOption {
	return func(client *Client) {
		client.http = transport
	}
}

// WithClientLogger attaches a structured logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(client *Client) {
		client.log = logger
	}
}

// NewClient returns a Client against the server at base, for example
// http://localhost:1337.
func NewClient(base string, opts ...ClientOption) *Client {
	client := &Client{base: strings.TrimSuffix(base, "/")}

	for _, opt := range opts {
		opt(client)
	}

	if client.http == nil {
		client.http = &fasthttp.Client{}
	}

	if client.log == nil {
		client.log = zap.NewNop()
	}

	return client
}

// Find fetches every matching document from the server.
func (client *Client) Find(
	ctx context.Context, collection string, params quarry.Params, actor quarry.Actor,
) ([]quarry.ObjectState, error) {
	body, err := client.get(ctx, collection, params, actor, false)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Results []quarry.ObjectState `json:"results"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("malformed results envelope: %w", err)
	}

	if envelope.Results == nil {
		envelope.Results = []quarry.ObjectState{}
	}

	return envelope.Results, nil
}

// Count asks the server for the number of matching documents.
func (client *Client) Count(
	ctx context.Context, collection string, params quarry.Params, actor quarry.Actor,
) (int64, error) {
	body, err := client.get(ctx, collection, params, actor, true)
	if err != nil {
		return 0, err
	}

	var envelope struct {
		Count int64 `json:"count"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("malformed count envelope: %w", err)
	}

	return envelope.Count, nil
}

/*
get performs one wire request and returns the response body. The
querystring is canonical, credentials and the actor's session token
travel as headers, and a context deadline bounds the round trip.
*/
func (client *Client) get(
	ctx context.Context, collection string, params quarry.Params, actor quarry.Actor, count bool,
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	querystring, err := encodeParams(params, count)
	if err != nil {
		return nil, err
	}

	uri := client.base + "/classes/" + url.PathEscape(collection)
	if querystring != "" {
		uri += "?" + querystring
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if client.appID != "" {
		req.Header.Set(HeaderApplicationID, client.appID)
	}

	if client.restKey != "" {
		req.Header.Set(HeaderRESTKey, client.restKey)
	}

	if actor.SessionToken != "" {
		req.Header.Set(HeaderSessionToken, actor.SessionToken)
	}

	if deadline, ok := ctx.Deadline(); ok {
		err = client.http.DoDeadline(req, resp, deadline)
	} else {
		err = client.http.Do(req, resp)
	}

	if errors.Is(err, fasthttp.ErrTimeout) {
		return nil, context.DeadlineExceeded
	}

	if err != nil {
		return nil, fmt.Errorf("quarry server unreachable: %w", err)
	}

	client.log.Debug("wire request served",
		zap.String("collection", collection),
		zap.Int("status", resp.StatusCode()))

	body := append([]byte(nil), resp.Body()...)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, wireError(resp.StatusCode(), body)
	}

	return body, nil
}

/*
wireError maps an error envelope back into the client-side taxonomy.
Object-not-found envelopes unwrap to ErrObjectNotFound so callers can
test with errors.Is; everything else surfaces its code and message.
*/
func wireError(status int, body []byte) error {
	var envelope struct {
		Code    int    `json:"code"`
		Message string `json:"error"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Message == "" {
		return fmt.Errorf("quarry server returned status %d", status)
	}

	if envelope.Code == CodeObjectNotFound {
		return fmt.Errorf("%w: %s", quarry.ErrObjectNotFound, envelope.Message)
	}

	return fmt.Errorf("quarry server error %d: %s", envelope.Code, envelope.Message)
}
