// Package httpclient builds and executes the HTTP requests issued by volley.
//
// The httpclient package covers:
//   - the immutable base request ([RequestSpec]) with ordered headers, params and cookies
//   - request bodies loaded from inline content or files ([BodySource])
//   - a single-attempt executor that captures status, headers and body ([Doer])
//   - transport tuning for timeouts, proxies, TLS verification and redirects ([NewClient])
//
// # Request Specs
//
// Use [NewRequestSpec] to derive the base request from configuration:
//
//	spec, err := httpclient.NewRequestSpec(cfg)
//	if err != nil {
//		return err
//	}
//	withSession := spec.WithCookie("sid", token)
//
// Specs are values. WithCookie and WithHeader return modified copies and never
// touch the receiver, so one base spec can be shared by every work item.
//
// # Attempts
//
// A [Doer] performs exactly one HTTP exchange per call:
//
//	client, err := httpclient.NewClient(httpclient.ClientOptions{Timeout: 30 * time.Second})
//	doer := httpclient.NewDoer(client)
//	resp, err := doer.Attempt(ctx, spec)
//
// Failures to construct the request are returned as [*RequestError]; every
// other error comes from the transport.
package httpclient
