// Package events defines the typed conversation event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - user_input.*
//   - assistant_response.*
//   - tool_call.*
//   - assistant_speech.*
//   - turn_state.*
//
// Semantics used across the package:
//
//   - Segment: append-only text piece emitted in stream order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current turn phase.
//   - Started/Ended: lifecycle boundaries.
//
// session events
//
//   - StateChanged (session.state_changed): the session moved between idle,
//     listening, processing and speaking.
//
// user_input events
//
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable running transcript of the current utterance.
//   - UserTranscriptFinal (user_input.transcript_final): terminal transcript
//     submitted as a turn.
//   - UserTextSubmitted (user_input.text_submitted): typed text submitted as
//     a turn.
//   - RecognitionFailed (user_input.recognition_failed): recognition stopped
//     with an error that needs the user's attention.
//
// assistant_response events
//
//   - AssistantResponseSegment (assistant_response.segment): streamed response
//     text segment.
//   - AssistantResponseFinal (assistant_response.final): full response text of
//     the turn.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): tool execution started.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed, the failure
//     text was fed back to the exchange.
//
// assistant_speech events
//
//   - AssistantSpeechStarted (assistant_speech.started): a sentence started
//     playing.
//   - AssistantSpeechEnded (assistant_speech.ended): a sentence finished
//     playing or was interrupted.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a turn was submitted.
//   - TurnCompleted (turn_state.completed): the turn finished successfully.
//   - TurnFailed (turn_state.failed): the exchange failed and the fallback
//     message was used.
//   - TurnCancelled (turn_state.cancelled): the turn was dropped by barge-in
//     or stop.
package events
