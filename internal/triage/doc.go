// Package triage turns raw alert and incident text into structured
// assessments via an LLM classifier, and orchestrates the ingestion,
// thread-analysis, and Q&A flows around them.
package triage
