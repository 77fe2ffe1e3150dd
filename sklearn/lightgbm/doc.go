// Package lightgbm implements histogram-based gradient boosted decision
// trees for binary classification, together with k-fold cross-validation,
// fold-model averaging and a LightGBM-style JSON model format.
//
// # Training
//
// Features are bucketed into at most MaxBin bins per column; missing values
// (NaN) get their own bin and each split learns which side they follow.
// Trees grow leaf-wise: the leaf with the largest second-order gain is split
// until NumLeaves is reached, MaxDepth blocks it, or no split satisfies
// MinDataInLeaf, MinSumHessianInLeaf and MinGainToSplit.
//
//	trainer := lightgbm.NewTrainer(lightgbm.DefaultTrainingParams()).
//	    WithFeatureNames(columns)
//	err := trainer.FitWithValidation(XTrain, yTrain, &lightgbm.ValidationData{X: XValid, Y: yValid})
//	model := trainer.GetModel()
//
// With validation data and EarlyStopping > 0 training stops once the
// validation loss has not improved for that many rounds, and trees after
// the best iteration are dropped.
//
// # Cross-validation
//
//	result, err := lightgbm.TrainCV(ctx, X, y, columns, lightgbm.DefaultCVConfig())
//	proba, err := result.Ensemble().PredictProba(XTest, columns)
//
// Fold assignment is deterministic for a given seed. Folds can be trained
// concurrently with CVConfig.MaxWorkers.
//
// # Persistence
//
// Models are stored as JSON in the layout of LightGBM's dump_model, with
// feature_names and init_score so predictions can be reproduced by name:
//
//	err := lightgbm.SaveModels(dir, result.Models, result.FullModel)
//	ens, err := lightgbm.LoadEnsemble(dir, false)
package lightgbm
