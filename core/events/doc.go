// Package events defines the market events a simulation publishes while it
// runs.
//
// Available event kinds:
//   - bankrupt: a firm's budget went negative and it left the market
//   - entered: a new firm replaced a bankrupt one
//   - adopted: a firm added a technology to its portfolio
//   - abandoned: a firm dropped a technology
//   - innovated: R&D improved one of a firm's vehicles
package events
