// Package surfer gives scripted robots exception-safe access to browser
// sessions and a scoped, jQuery-like element search over the live page.
//
// # Architecture
//
//  1. Bucket: owns one lazily built driver handle, optionally keyed by a
//     session id, and the context currently bound to it
//  2. Scope: opens managed windows, hands out sessions bound to buckets and
//     cleans every bucket up when the window exits
//  3. ElementSet: an ordered set of elements with search, fill and
//     apply-to-first / apply-to-each operations
//  4. Session: a bucket-bound context with macro attributes, a stack of
//     nested search scopes, retrying navigation and typed view switching
//
// # Session Lifecycle
//
// Sessions start bound to a bucket and become unbound exactly once: by
// Release, by Quit, or when a newer session binds the same bucket (which is
// what SwitchTo does). When a managed window exits every bucket it handed out
// is unbound. Buckets are also reset, closing the browser, when the window
// failed or did not ask to keep sessions. Anonymous buckets are always reset
// on unbind.
//
// # Example Usage
//
//	scope := surfer.New(launcher, config.GetDriver().Settings())
//	err := scope.Managed(ctx, surfer.ManagedOptions{KeepSessions: true}, func(ctx context.Context) error {
//		return scope.WithSession(ctx, "shop", func(s *surfer.Session) error {
//			if err := s.Navigate(ctx, "https://shop.example.com/login", nil); err != nil {
//				return err
//			}
//			return s.Step(ctx, driver.CSS("form#login"), func() error {
//				user, err := s.Search(ctx, driver.CSS("input[name=user]"))
//				if err != nil {
//					return err
//				}
//				return user.Fill("alice")
//			})
//		})
//	})
package surfer
