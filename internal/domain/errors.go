package domain

import "errors"

var (
	// ErrEventNotFound indicates the event content could not be loaded.
	ErrEventNotFound = errors.New("event not found")
	// ErrSessionNotFound is returned when an event session has not been initialized.
	ErrSessionNotFound = errors.New("event session not found")
	// ErrSessionClosed is returned for operations on a torn-down session.
	ErrSessionClosed = errors.New("event session closed")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in event")
	// ErrRoundNotFound indicates an unknown round ID for the event.
	ErrRoundNotFound = errors.New("round not found")
	// ErrRoundNotActive is returned when a lifecycle operation needs the round active.
	ErrRoundNotActive = errors.New("round is not active")
	// ErrRoundAlreadyActive guards the one-active-round-per-event invariant.
	ErrRoundAlreadyActive = errors.New("another round is already active")
	// ErrRoundCompleted is returned when reactivating a finished round.
	ErrRoundCompleted = errors.New("round already completed")
	// ErrQuestionNotFound indicates an unknown question ID for the round.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionAlreadyClosed is returned when reopening a closed question.
	ErrQuestionAlreadyClosed = errors.New("question already closed")
	// ErrQuestionNotOpen is returned when closing a question that is not open.
	ErrQuestionNotOpen = errors.New("question is not open")
)
