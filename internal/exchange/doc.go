// Package exchange provides the Exchange Registry: which exchanges a
// tenant may trade on, their status, and their trading constraints.
//
// Two registries are provided:
//   - StaticRegistry: loaded from configuration, status changeable by operators
//   - RemoteRegistry: reads an external registry service over REST
//
// REST endpoints (registry service):
//   - GET /tenants/{tenant}/exchanges
//   - GET /exchanges/{exchange}/orderbooks/{asset}
package exchange
