// Package core contains the donation notification contracts, entities and
// processing pipeline. Transport, storage and messaging adapters depend on this
// package; core must not depend on them.
package core
