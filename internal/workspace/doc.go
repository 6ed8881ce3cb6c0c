// Package workspace provisions the on-disk data layout the server process
// expects: the data/ root with its raw_videos, processed, and thumbnails
// subdirectories. Provisioning is idempotent and verified, so a container or
// developer machine reaches the same guaranteed state on every start.
package workspace
