// Package facematch identifies users from camera frames.
//
// A Source produces frames into a single-slot FrameBuffer, so the
// recognition loop always works on the freshest image instead of a
// backlog. A Detector finds faces and computes embeddings; the Index
// caches the enrolled embeddings of active users and matches by
// Euclidean distance. The Pipeline ties the three together and
// classifies each frame into a Status the authentication loop acts on.
package facematch
