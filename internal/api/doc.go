// Package api is the boundary between signet's consumers (CLI commands, the
// token broker) and the packages that implement authentication.
//
// It follows a service locator pattern: this package defines the handler
// interfaces and DTOs, implementing packages register adapters at startup,
// and consumers resolve handlers through the Get* functions. Consumers never
// import the implementing packages directly, which keeps the dependency
// graph acyclic and lets tests swap in fakes.
//
// # Registration
//
// During startup the oauth package registers its adapter:
//
//	adapter := oauth.NewAdapter(manager, registry, store)
//	api.RegisterAuthHandler(adapter)
//
// Consumers resolve it when needed:
//
//	handler, err := api.AuthHandlerOrError()
//	if err != nil {
//	    return err
//	}
//	if err := handler.Login(ctx, provider); err != nil {
//	    ...
//	}
//
// Handlers may be replaced at runtime; reads and writes are guarded by a
// package mutex.
package api
