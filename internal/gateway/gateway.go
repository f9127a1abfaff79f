// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package gateway

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"github.com/cardinalhq/mediarunner/internal/apiresponse"
	"github.com/cardinalhq/mediarunner/internal/healthcheck"
	"github.com/cardinalhq/mediarunner/internal/idgen"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// maxBodyBytes bounds request bodies; API Gateway itself caps payloads at 10MB.
const maxBodyBytes = 10 << 20

// APIHandler has the signature of an API Gateway proxy integration handler.
type APIHandler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Route binds a method-qualified ServeMux pattern, such as
// "GET /thumbnails/{channelId}", to a handler.
type Route struct {
	Pattern string
	Handler APIHandler
}

// NewMux serves routes the way API Gateway would invoke them, plus CORS
// preflight for every path and the health endpoints when health is non-nil.
func NewMux(routes []Route, health *healthcheck.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	for _, r := range routes {
		mux.Handle(r.Pattern, Adapt(r.Pattern, r.Handler))
	}
	mux.HandleFunc("OPTIONS /", preflight)
	if health != nil {
		health.Register(mux)
	}
	return mux
}

// Adapt wraps an APIHandler as an http.Handler. Wildcards named in pattern
// become path parameters of the proxy request.
func Adapt(pattern string, h APIHandler) http.Handler {
	params := PatternParams(pattern)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := idgen.RequestID()
		ll := logctx.FromContext(r.Context()).With(
			slog.String("requestID", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		ctx := logctx.WithLogger(r.Context(), ll)

		req, err := ToProxyRequest(r, params)
		if err != nil {
			ll.Warn("Unable to read request body", slog.Any("error", err))
			WriteProxyResponse(w, apiresponse.Text(http.StatusBadRequest, "Unable to read request body"))
			return
		}
		req.RequestContext.RequestID = requestID

		start := time.Now()
		resp, err := h(ctx, req)
		if err != nil {
			ll.Error("Handler returned error", slog.Any("error", err))
			if resp.StatusCode == 0 {
				resp = apiresponse.FromError(err)
			}
		}
		WriteProxyResponse(w, resp)
		ll.Debug("Request served",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)))
	})
}

// PatternParams returns the wildcard names in a ServeMux pattern.
func PatternParams(pattern string) []string {
	var names []string
	for seg := range strings.SplitSeq(pattern, "/") {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSuffix(seg[1:len(seg)-1], "..."), "$")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ToProxyRequest converts an HTTP request into an API Gateway proxy request.
// Bodies that are not valid UTF-8 are base64 encoded, as API Gateway does for
// binary media types.
func ToProxyRequest(r *http.Request, params []string) (events.APIGatewayProxyRequest, error) {
	req := events.APIGatewayProxyRequest{
		Resource:                        r.Pattern,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         map[string]string{},
		MultiValueHeaders:               map[string][]string{},
		QueryStringParameters:           map[string]string{},
		MultiValueQueryStringParameters: map[string][]string{},
		PathParameters:                  map[string]string{},
		RequestContext: events.APIGatewayProxyRequestContext{
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  r.RemoteAddr,
				UserAgent: r.UserAgent(),
			},
		},
	}
	for k, v := range r.Header {
		req.Headers[k] = v[0]
		req.MultiValueHeaders[k] = v
	}
	for k, v := range r.URL.Query() {
		req.QueryStringParameters[k] = v[0]
		req.MultiValueQueryStringParameters[k] = v
	}
	for _, name := range params {
		req.PathParameters[name] = r.PathValue(name)
	}

	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return req, err
		}
		if utf8.Valid(b) {
			req.Body = string(b)
		} else {
			req.Body = base64.StdEncoding.EncodeToString(b)
			req.IsBase64Encoded = true
		}
	}
	return req, nil
}

// WriteProxyResponse writes a proxy response to w.
func WriteProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	h := w.Header()
	for k, v := range resp.Headers {
		h.Set(k, v)
	}
	for k, vs := range resp.MultiValueHeaders {
		for _, v := range vs {
			h.Add(k, v)
		}
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body = decoded
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func preflight(w http.ResponseWriter, _ *http.Request) {
	for k, v := range apiresponse.Headers() {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusNoContent)
}
