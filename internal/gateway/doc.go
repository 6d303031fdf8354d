// Package gateway forwards admin panel API calls to the backend service.
//
// One Forwarder implements the whole pipeline and every route is a row in
// a dispatch table (DefaultRoutes). For each inbound request the forwarder:
//
//  1. resolves the route's origin and fails with a configuration error when
//     it is not set,
//  2. validates path parameters that must be UUIDs,
//  3. builds the target URL from the path template and the raw inbound query,
//  4. copies Authorization and Content-Type, forces Accept: application/json,
//     and forwards the body verbatim for every method except GET and HEAD,
//  5. calls the origin under the route timeout,
//  6. relays the upstream status with the body as JSON when it parses and
//     as raw text otherwise.
//
// Gateway failures are answered with a JSON body {"error": ...} and one of
// 400, 500, 502 or 504. Upstream error statuses are relayed unchanged. The
// forwarder never retries.
package gateway
