package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "financials.v1.FieldMapper"

// FieldMapperServer is the server API. Every body is a google.protobuf.Struct
// holding the JSON shape of the matching request/response type in types.go.
type FieldMapperServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Learn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AutoApply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddLabel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveLabel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMemory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportResults(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(FieldMapperServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// FieldMapperServiceDesc is registered by RegisterFieldMapperServer.
var FieldMapperServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FieldMapperServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: unaryHandler("Extract", FieldMapperServer.Extract)},
		{MethodName: "Learn", Handler: unaryHandler("Learn", FieldMapperServer.Learn)},
		{MethodName: "AutoApply", Handler: unaryHandler("AutoApply", FieldMapperServer.AutoApply)},
		{MethodName: "AddLabel", Handler: unaryHandler("AddLabel", FieldMapperServer.AddLabel)},
		{MethodName: "RemoveLabel", Handler: unaryHandler("RemoveLabel", FieldMapperServer.RemoveLabel)},
		{MethodName: "GetMemory", Handler: unaryHandler("GetMemory", FieldMapperServer.GetMemory)},
		{MethodName: "ExportResults", Handler: unaryHandler("ExportResults", FieldMapperServer.ExportResults)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "financials/v1/field_mapper.proto",
}

func RegisterFieldMapperServer(s grpc.ServiceRegistrar, srv FieldMapperServer) {
	s.RegisterService(&FieldMapperServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryHandler(name string, m unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			out, err := m(srv.(FieldMapperServer), ctx, req.(*structpb.Struct))
			if err != nil {
				return nil, common.ToStatus(err)
			}
			return out, nil
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		return interceptor(ctx, in, info, call)
	}
}
