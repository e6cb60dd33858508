package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
)

// Client is a typed FieldMapper client.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := encodeStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return err
	}
	return decodeStruct(out, resp, false)
}

func (c *Client) Extract(ctx context.Context, req ExtractRequest, opts ...grpc.CallOption) (*ExtractResponse, error) {
	var out ExtractResponse
	if err := c.call(ctx, "Extract", req, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Learn(ctx context.Context, req LearnRequest, opts ...grpc.CallOption) (*mapping.LearnResult, error) {
	var out mapping.LearnResult
	if err := c.call(ctx, "Learn", req, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AutoApply(ctx context.Context, req AutoApplyRequest, opts ...grpc.CallOption) ([]mapping.Candidate, error) {
	var out AutoApplyResponse
	if err := c.call(ctx, "AutoApply", req, &out, opts...); err != nil {
		return nil, err
	}
	return out.Candidates, nil
}

func (c *Client) AddLabel(ctx context.Context, req LabelRequest, opts ...grpc.CallOption) (bool, error) {
	var out AddLabelResponse
	if err := c.call(ctx, "AddLabel", req, &out, opts...); err != nil {
		return false, err
	}
	return out.Added, nil
}

func (c *Client) RemoveLabel(ctx context.Context, req LabelRequest, opts ...grpc.CallOption) (*mapping.RemoveResult, error) {
	var out mapping.RemoveResult
	if err := c.call(ctx, "RemoveLabel", req, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetMemory(ctx context.Context, tenantID string, opts ...grpc.CallOption) (*mapping.Store, error) {
	var out mapping.Store
	if err := c.call(ctx, "GetMemory", TenantRequest{TenantID: tenantID}, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExportResults(ctx context.Context, req ExportRequest, opts ...grpc.CallOption) (*ExportResponse, error) {
	var out ExportResponse
	if err := c.call(ctx, "ExportResults", req, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}
