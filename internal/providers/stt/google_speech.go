package stt

import (
	"context"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/yoockh/yoochat/internal/utils"
)

// MaxClipBytes is the synchronous Recognize payload limit.
const MaxClipBytes = 10 << 20

type GoogleSpeech struct {
	c *speech.Client

	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32

	recognize func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	g := &GoogleSpeech{
		c:            c,
		Encoding:     speechpb.RecognitionConfig_LINEAR16,
		SampleRateHz: 16000,
	}
	g.recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return g.c.Recognize(ctx, req)
	}
	return g, nil
}

func (g *GoogleSpeech) Close() error {
	if g.c == nil {
		return nil
	}
	return g.c.Close()
}

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, language string) (Transcription, error) {
	const op = "GoogleSpeech.Transcribe"

	if len(audio) == 0 {
		return Transcription{}, utils.E(utils.CodeInvalidArgument, op, "audio is empty", nil)
	}
	if len(audio) > MaxClipBytes {
		return Transcription{}, utils.E(utils.CodeInvalidArgument, op, "audio clip is too large", nil)
	}
	language = NormalizeLanguage(language)

	resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.Encoding,
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Transcription{}, utils.E(utils.CodeUnavailable, op, "speech recognition failed", err)
	}

	text, conf := bestAlternative(resp)
	return Transcription{Text: text, Confidence: conf, Language: language}, nil
}

func bestAlternative(resp *speechpb.RecognizeResponse) (string, float64) {
	var bestText string
	var bestConf float64
	for _, r := range resp.GetResults() {
		for _, alt := range r.GetAlternatives() {
			if alt.GetTranscript() != "" && float64(alt.GetConfidence()) >= bestConf {
				bestText = alt.GetTranscript()
				bestConf = float64(alt.GetConfidence())
			}
		}
	}
	return bestText, bestConf
}
