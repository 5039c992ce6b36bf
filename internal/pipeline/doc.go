// Package pipeline rebuilds comic archives with recompressed images.
//
// A Coordinator processes one archive through the states
//
//	Opened → Enumerated → Draining(n) → Packed → CleanedUp
//
// with Failed reachable from each of them. Leaves are read in enumeration
// order and fed to a compress.Stage through a bounded queue; completed
// outcomes are written into a scratch workspace in completion order, one
// progress step each. The workspace is packed into the destination archive
// and then removed on every exit path.
//
// A Batch discovers archives under an input tree and runs the Coordinator on
// each of them in turn. One archive failing never stops the batch.
package pipeline
