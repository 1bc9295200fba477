/*
Package clustering groups detected faces into identities.

Each group is compared through a representative: the member with the highest
recorded similarity score, ties going to the lowest face id. New faces join
the most similar group when the cosine similarity reaches the threshold and
otherwise start a group of their own. A merge pass folds together groups
whose representatives have become similar, comparing at most SampleCap pairs
per pass, so repeated runs converge instead of one run being exhaustive.

Both passes are idempotent once the catalog has settled.
*/
package clustering
