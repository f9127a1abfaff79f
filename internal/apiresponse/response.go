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

package apiresponse

import (
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

const (
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderContentType  = "Content-Type"

	AllowedMethods  = "OPTIONS,POST,GET"
	ContentTypeHTML = "text/html"
)

// Headers returns a fresh header map with the CORS headers every API
// response carries.
func Headers() map[string]string {
	return map[string]string{
		HeaderAllowHeaders: "*",
		HeaderAllowOrigin:  "*",
		HeaderAllowMethods: AllowedMethods,
	}
}

// Text builds a proxy response with CORS headers and a plain body.
func Text(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    Headers(),
		Body:       body,
	}
}

// HTML builds a proxy response with CORS headers and Content-Type text/html.
func HTML(status int, body string) events.APIGatewayProxyResponse {
	resp := Text(status, body)
	resp.Headers[HeaderContentType] = ContentTypeHTML
	return resp
}

// FromError converts a handler error into a proxy response. Errors that carry
// their own status and body are rendered as such; anything else becomes a
// generic 500 so internal details are not leaked to callers.
func FromError(err error) events.APIGatewayProxyResponse {
	if se, ok := AsStatusError(err); ok {
		return Text(se.StatusCode(), se.Body())
	}
	return Text(http.StatusInternalServerError, "Something Went Wrong")
}
