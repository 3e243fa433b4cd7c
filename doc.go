/*
Package facelock implements a single target face tracking pipeline that
locks onto one enrolled identity and follows it across video frames.

The pipeline runs a three phase state machine.  In the search phase each
frame is scanned for face detections and the strongest candidate is
selected.  In the verify phase the candidate face is embedded and compared
against the enrollment bank's reference vector, a match locks the track.
In the track phase the locked face is followed with motion smoothing and
periodically re-verified, losing it for too many consecutive frames
returns the pipeline to the search phase.

Face detection and recognition models run through the OpenCV DNN backend,
see the detect and embed packages.  Track lifecycle and geometry live in
the tracker package.
*/
package facelock
