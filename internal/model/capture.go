package model

import "time"

// RawCapture is a free-form tasting observation exactly as the taster wrote
// it. It is immutable: conversion runs reference it, they never modify it.
type RawCapture struct {
	ID        string    `json:"id"`
	RawText   string    `json:"raw_text"`
	Tags      []string  `json:"tags,omitempty"`
	Converted bool      `json:"converted"`
	RunID     string    `json:"run_id,omitempty"` // winning conversion run, if any
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Hints carries caller-supplied verified facts (label text, known producer,
// vintage) passed alongside the raw text to guide extraction.
type Hints map[string]string
